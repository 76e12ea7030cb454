package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/choicetrial/go/internal/results"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ResultServiceName = "choicetrial.v1.ResultService"

	// GetSessionResultsProcedure takes a session id and returns its records.
	GetSessionResultsProcedure = "/" + ResultServiceName + "/GetSessionResults"
)

// ResultService exposes stored trial results over connect.
type ResultService struct {
	reader results.Reader
}

func NewResultService(reader results.Reader) *ResultService {
	return &ResultService{reader: reader}
}

// GetSessionResults returns {"session_id": ..., "records": [...]}.
func (s *ResultService) GetSessionResults(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	sessionID, err := uuid.Parse(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid session id: %w", err))
	}

	recs, err := s.reader.SessionResults(ctx, sessionID)
	if errors.Is(err, results.ErrSessionNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to load session results")
		return nil, connect.NewError(connect.CodeInternal, errors.New("failed to load session results"))
	}

	body, err := recordsStruct(sessionID, recs)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(body), nil
}

// recordsStruct converts records to a protobuf Struct through their JSON
// form, so the wire shape matches the websocket and NATS payloads.
func recordsStruct(sessionID uuid.UUID, recs []results.Record) (*structpb.Struct, error) {
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal records: %w", err)
	}
	var list []interface{}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	body, err := structpb.NewStruct(map[string]interface{}{
		"session_id": sessionID.String(),
		"records":    list,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build response: %w", err)
	}
	return body, nil
}

// NewResultServiceHandler returns the path and handler to mount.
func NewResultServiceHandler(svc *ResultService, opts ...connect.HandlerOption) (string, http.Handler) {
	getSessionResults := connect.NewUnaryHandler(
		GetSessionResultsProcedure,
		svc.GetSessionResults,
		opts...,
	)
	mux := http.NewServeMux()
	mux.Handle(GetSessionResultsProcedure, getSessionResults)
	return "/" + ResultServiceName + "/", mux
}
