package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/errors"
	"github.com/victornm/raboard/internal/leaderboard"
)

const (
	LeaderboardServiceName = "raboard.v1.LeaderboardService"

	GetLeaderboardMethod  = "/" + LeaderboardServiceName + "/GetLeaderboard"
	GetUserProgressMethod = "/" + LeaderboardServiceName + "/GetUserProgress"
)

// LeaderboardServiceServer is served with google.protobuf.Struct messages carrying the same JSON
// documents as the HTTP API.
type LeaderboardServiceServer interface {
	GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetUserProgress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var leaderboardServiceDesc = grpc.ServiceDesc{
	ServiceName: LeaderboardServiceName,
	HandlerType: (*LeaderboardServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetLeaderboard",
			Handler:    unaryHandler(GetLeaderboardMethod, LeaderboardServiceServer.GetLeaderboard),
		},
		{
			MethodName: "GetUserProgress",
			Handler:    unaryHandler(GetUserProgressMethod, LeaderboardServiceServer.GetUserProgress),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raboard/v1/leaderboard.proto",
}

type structMethod func(srv LeaderboardServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unaryHandler(fullMethod string, m structMethod) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return m(srv.(LeaderboardServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return m(srv.(LeaderboardServiceServer), ctx, req.(*structpb.Struct))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// GetLeaderboard expects {"gameId": string}.
func (a *API) GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s, err := a.ls.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		GameID: stringField(req, "gameId"),
	})
	if err != nil {
		return nil, errors.Convert(err)
	}

	return toStruct(toLeaderboard(s))
}

// GetUserProgress expects {"gameId": string, "username": string}.
func (a *API) GetUserProgress(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := a.ls.GetUserProgress(ctx, leaderboard.GetUserProgressRequest{
		GameID: stringField(req, "gameId"),
		Handle: domain.Handle(stringField(req, "username")),
	})
	if err != nil {
		return nil, errors.Convert(err)
	}

	return toStruct(toUserProgress(p))
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Internal(err)
	}

	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, errors.Internal(err)
	}

	return s, nil
}
