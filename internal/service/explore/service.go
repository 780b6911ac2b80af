package explore

import (
	"context"
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/OfomiMatthew/tech-buddy/internal/app"
	"github.com/OfomiMatthew/tech-buddy/internal/db"
	svcErr "github.com/OfomiMatthew/tech-buddy/internal/errors"
	"github.com/OfomiMatthew/tech-buddy/internal/service/match"
)

// pageSize is the liked-you page size over gRPC, smaller than the REST
// default so clients page early.
const pageSize = 5

// Service implements the Explore gRPC API on top of the match engine.
// Requests and responses are google.protobuf.Struct messages; ids travel as
// decimal strings and timestamps as unix milliseconds.
type Service struct {
	appCtx *app.AppContext
	engine *match.Engine
}

// NewExploreService creates the Explore service over an existing engine so
// HTTP and gRPC callers share presence and event wiring.
func NewExploreService(appCtx *app.AppContext, engine *match.Engine) *Service {
	return &Service{appCtx: appCtx, engine: engine}
}

// ListLikedYou returns users who liked the recipient, newest first.
//
// Behavior:
//   - Reads recipient_user_id and an optional pagination_token.
//   - Delegates to the engine, which hides likers with a block edge.
//   - Returns likers as actor_id + unix_timestamp pairs.
//
// Example:
//
//	svc.ListLikedYou(ctx, {"recipient_user_id": "42"})
func (s *Service) ListLikedYou(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.appCtx.Logger.Debug("ListLikedYou called", "recipient", stringField(req, "recipient_user_id"))

	recipientID, err := idField(req, "recipient_user_id")
	if err != nil {
		return nil, err
	}
	likes, next, err := s.engine.ListLikedYou(ctx, recipientID, tokenField(req), pageSize)
	if err != nil {
		return nil, err
	}
	return likersResponse(likes, next)
}

// ListNewLikedYou returns likers the recipient has not liked back.
//
// Example:
//
//	svc.ListNewLikedYou(ctx, {"recipient_user_id": "42", "pagination_token": "..."})
func (s *Service) ListNewLikedYou(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.appCtx.Logger.Debug("ListNewLikedYou called", "recipient", stringField(req, "recipient_user_id"))

	recipientID, err := idField(req, "recipient_user_id")
	if err != nil {
		return nil, err
	}
	likes, next, err := s.engine.ListNewLikedYou(ctx, recipientID, tokenField(req), pageSize)
	if err != nil {
		return nil, err
	}
	return likersResponse(likes, next)
}

// CountLikedYou returns how many users liked the recipient. The engine
// serves it from the likes:count:<id> counter when cached.
func (s *Service) CountLikedYou(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.appCtx.Logger.Debug("CountLikedYou called", "recipient", stringField(req, "recipient_user_id"))

	recipientID, err := idField(req, "recipient_user_id")
	if err != nil {
		return nil, err
	}
	n, err := s.engine.CountLikedYou(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"count": n})
}

// SubmitLike records actor -> recipient and reports whether it produced a match.
//
// Behavior:
//   - Same validation and error codes as the HTTP like endpoint.
//   - A duplicate like is AlreadyExists; an inactive recipient FailedPrecondition.
//
// Example:
//
//	svc.SubmitLike(ctx, {"actor_user_id": "1", "recipient_user_id": "2"})
func (s *Service) SubmitLike(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.appCtx.Logger.Debug(
		"SubmitLike called",
		"actor", stringField(req, "actor_user_id"),
		"recipient", stringField(req, "recipient_user_id"),
	)
	actorID, err := idField(req, "actor_user_id")
	if err != nil {
		return nil, err
	}
	recipientID, err := idField(req, "recipient_user_id")
	if err != nil {
		return nil, err
	}
	res, err := s.engine.SubmitLike(ctx, actorID, recipientID)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"mutual_likes": res.Matched}
	if res.Match != nil {
		out["match_id"] = strconv.FormatUint(res.Match.ID, 10)
	}
	return structpb.NewStruct(out)
}

// Discover returns candidate user ids for user_id, honoring an optional limit.
func (s *Service) Discover(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := idField(req, "user_id")
	if err != nil {
		return nil, err
	}
	limit := 0
	if v, ok := req.GetFields()["limit"]; ok {
		limit = int(v.GetNumberValue())
	}
	users, err := s.engine.Discover(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	list := make([]any, 0, len(users))
	for _, u := range users {
		list = append(list, map[string]any{
			"user_id":  strconv.FormatUint(u.ID, 10),
			"username": u.Username,
		})
	}
	return structpb.NewStruct(map[string]any{"users": list})
}

func likersResponse(likes []db.Like, next *string) (*structpb.Struct, error) {
	list := make([]any, 0, len(likes))
	for _, l := range likes {
		list = append(list, map[string]any{
			"actor_id":       strconv.FormatUint(l.LikerID, 10),
			"unix_timestamp": l.CreatedAt.UnixMilli(),
		})
	}
	out := map[string]any{"likers": list}
	if next != nil {
		out["next_pagination_token"] = *next
	}
	return structpb.NewStruct(out)
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func idField(req *structpb.Struct, name string) (uint64, error) {
	id, err := strconv.ParseUint(stringField(req, name), 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.InvalidArgument(name + " must be a valid uint64")
	}
	return id, nil
}

func tokenField(req *structpb.Struct) *string {
	if t := stringField(req, "pagination_token"); t != "" {
		return &t
	}
	return nil
}
