package server

import (
	"github.com/gorilla/mux"
	"google.golang.org/grpc"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s *grpc.Server)
}

// Routes are the two HTTP route trees handed to each service.
// Private routes sit behind the JWT middleware.
type Routes struct {
	Public  *mux.Router
	Private *mux.Router
}

// RouteRegistrar is implemented by services exposing HTTP endpoints.
type RouteRegistrar interface {
	RegisterRoutes(rt Routes)
}
