package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sealshare/sealshare-server/internal/logger"
	"github.com/sealshare/sealshare-server/internal/service"
)

// Router wires the HTTP API. Handshake, signup, token refresh and the
// invite capability lookup are public; everything else sits behind
// bearer authentication.
type Router struct {
	authService   *service.Auth
	recordService *service.Record
	grantService  *service.Grant
	inviteService *service.Invite
	friendService *service.Friend
	logger        *logger.Logger
}

// New creates a Router over the given services.
func New(
	authService *service.Auth,
	recordService *service.Record,
	grantService *service.Grant,
	inviteService *service.Invite,
	friendService *service.Friend,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:   authService,
		recordService: recordService,
		grantService:  grantService,
		inviteService: inviteService,
		friendService: friendService,
		logger:        logger,
	}
}

// Register builds the route tree.
func (rt *Router) Register() http.Handler {
	authHandler := NewAuthHandler(rt.authService, rt.logger)
	recordHandler := NewRecordHandler(rt.recordService, rt.logger)
	grantHandler := NewGrantHandler(rt.grantService, rt.logger)
	inviteHandler := NewInviteHandler(rt.inviteService, rt.logger)
	friendHandler := NewFriendHandler(rt.friendService, rt.logger)

	r := chi.NewRouter()
	r.Use(requestLogger(rt.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.CreateAccount)
		r.Post("/auth/handshake", authHandler.BeginHandshake)
		r.Post("/auth/handshake/finish", authHandler.FinishHandshake)
		r.Post("/auth/refresh", authHandler.Refresh)

		// The invite id is the capability: holders of the link may
		// inspect what it carries before creating an account.
		r.Get("/invites/{inviteID}/grants", inviteHandler.Grants)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(rt.authService.Tokens()))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/profile", authHandler.GetProfile)
			r.Put("/profile/password", authHandler.ChangePassword)

			r.Route("/records", func(r chi.Router) {
				r.Post("/", recordHandler.Create)
				r.Get("/", recordHandler.List)
				r.Get("/{recordID}", recordHandler.Get)
				r.Delete("/{recordID}", recordHandler.Delete)
				r.Post("/{recordID}/rotate", recordHandler.Rotate)

				r.Get("/{recordID}/grants", grantHandler.List)
				r.Post("/{recordID}/grants/request", grantHandler.Request)
				r.Post("/{recordID}/grants/accept", grantHandler.AcceptOffer)
				r.Post("/{recordID}/grants/reject", grantHandler.RejectOffer)
				r.Post("/{recordID}/grants/{userID}/preview", grantHandler.Preview)
				r.Post("/{recordID}/grants/{userID}/offer", grantHandler.Offer)
				r.Post("/{recordID}/grants/{userID}/approve", grantHandler.Approve)
				r.Post("/{recordID}/grants/{userID}/deny", grantHandler.Deny)
				r.Delete("/{recordID}/grants/{userID}", grantHandler.Revoke)
			})

			r.Route("/invites", func(r chi.Router) {
				r.Post("/", inviteHandler.Create)
				r.Post("/{inviteID}/grants/{recordID}", inviteHandler.AddGrant)
				r.Post("/{inviteID}/redeem", inviteHandler.Redeem)
			})

			r.Route("/friends", func(r chi.Router) {
				r.Get("/", friendHandler.Friends)
				r.Post("/requests", friendHandler.Send)
				r.Get("/requests/incoming", friendHandler.Incoming)
				r.Get("/requests/outgoing", friendHandler.Outgoing)
				r.Post("/requests/{requestID}/respond", friendHandler.Respond)
			})
		})
	})

	return r
}
