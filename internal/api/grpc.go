package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/victornm/quizarena/internal/errors"
	"github.com/victornm/quizarena/internal/session"
)

const SessionServiceName = "quizarena.v1.SessionService"

// Every method takes and returns a google.protobuf.Struct. Named methods fix
// the command type; Dispatch reads it from the payload's "type" field.
var sessionMethods = map[string]string{
	"Dispatch":       "",
	"Login":          session.TypeLogin,
	"JoinLobby":      session.TypeJoinLobby,
	"LeaveLobby":     session.TypeLeaveLobby,
	"AnswerQuestion": session.TypeAnsweredQuestion,
	"UpdateScore":    session.TypeUpdateScore,
	"PayoutJackpot":  session.TypePayoutJackpot,
	"ActivateItem":   session.TypeActivateItem,
}

type sessionServiceServer interface {
	dispatch(ctx context.Context, typ string, in *structpb.Struct) (*structpb.Struct, error)
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: SessionServiceName,
	HandlerType: (*sessionServiceServer)(nil),
	Methods:     sessionMethodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "quizarena/v1/session.proto",
}

func sessionMethodDescs() []grpc.MethodDesc {
	descs := make([]grpc.MethodDesc, 0, len(sessionMethods))
	for name, typ := range sessionMethods {
		descs = append(descs, grpc.MethodDesc{
			MethodName: name,
			Handler:    sessionHandler(name, typ),
		})
	}
	return descs
}

func sessionHandler(name, typ string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		call := func(ctx context.Context, req any) (any, error) {
			return srv.(sessionServiceServer).dispatch(ctx, typ, req.(*structpb.Struct))
		}
		if interceptor == nil {
			return call(ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + SessionServiceName + "/" + name,
		}
		return interceptor(ctx, in, info, call)
	}
}

func (a *API) dispatch(ctx context.Context, typ string, in *structpb.Struct) (*structpb.Struct, error) {
	raw := in.AsMap()
	if typ != "" {
		raw["type"] = typ
	}

	c, err := session.ParseCommand(raw)
	if err != nil {
		return nil, err
	}

	reply, err := a.ss.Handle(ctx, c)
	if err != nil {
		return nil, err
	}

	out, err := structpb.NewStruct(reply)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return out, nil
}
