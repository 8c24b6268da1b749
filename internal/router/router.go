package router

import (
	"net/http"

	"github.com/roktosheba/donor-service/internal/handlers"
)

func InitRoutes(feedHandler *handlers.FeedHandler, requestHandler *handlers.RequestHandler, responseHandler *handlers.ResponseHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ping", handlers.PingHandler)

	mux.HandleFunc("GET /api/requests", feedHandler.GetFeed)
	mux.HandleFunc("GET /api/requests/new", feedHandler.GetNewItems)
	mux.HandleFunc("POST /api/requests/new", requestHandler.CreateRequest)
	mux.HandleFunc("GET /api/requests/{requestId}", requestHandler.GetRequest)
	mux.HandleFunc("PATCH /api/requests/{requestId}/edit", requestHandler.EditRequest)
	mux.HandleFunc("PUT /api/requests/{requestId}/close", requestHandler.CloseRequest)
	mux.HandleFunc("POST /api/requests/{requestId}/upvote", requestHandler.ToggleUpvote)
	mux.HandleFunc("GET /api/requests/{requestId}/eligibility", requestHandler.CheckEligibility)
	mux.HandleFunc("GET /api/requests/{requestId}/responses", responseHandler.GetRequestResponses)

	mux.HandleFunc("POST /api/responses/new", responseHandler.CreateResponse)
	mux.HandleFunc("PUT /api/responses/{responseId}/decision", responseHandler.SubmitDecision)
	mux.HandleFunc("GET /api/responses/my", responseHandler.GetMyResponses)

	return mux
}
