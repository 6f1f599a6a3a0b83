package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

const SessionServiceName = "mockdrive.assessment.v1.SessionService"

const (
	SessionServiceStartSessionProcedure     = "/" + SessionServiceName + "/StartSession"
	SessionServiceGetSessionStateProcedure  = "/" + SessionServiceName + "/GetSessionState"
	SessionServiceListViolationsProcedure   = "/" + SessionServiceName + "/ListViolations"
	SessionServiceListRoundResultsProcedure = "/" + SessionServiceName + "/ListRoundResults"
	SessionServiceEndSessionProcedure       = "/" + SessionServiceName + "/EndSession"
)

// NewSessionServiceHandler builds the HTTP handler for svc and returns the
// path to mount it on.
func NewSessionServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	startSession := connect.NewUnaryHandler(SessionServiceStartSessionProcedure, svc.StartSession, opts...)
	getSessionState := connect.NewUnaryHandler(SessionServiceGetSessionStateProcedure, svc.GetSessionState, opts...)
	listViolations := connect.NewUnaryHandler(SessionServiceListViolationsProcedure, svc.ListViolations, opts...)
	listRoundResults := connect.NewUnaryHandler(SessionServiceListRoundResultsProcedure, svc.ListRoundResults, opts...)
	endSession := connect.NewUnaryHandler(SessionServiceEndSessionProcedure, svc.EndSession, opts...)

	return "/" + SessionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SessionServiceStartSessionProcedure:
			startSession.ServeHTTP(w, r)
		case SessionServiceGetSessionStateProcedure:
			getSessionState.ServeHTTP(w, r)
		case SessionServiceListViolationsProcedure:
			listViolations.ServeHTTP(w, r)
		case SessionServiceListRoundResultsProcedure:
			listRoundResults.ServeHTTP(w, r)
		case SessionServiceEndSessionProcedure:
			endSession.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SessionServiceClient calls a SessionService over connect with the JSON codec.
type SessionServiceClient struct {
	startSession     *connect.Client[StartSessionRequest, StartSessionResponse]
	getSessionState  *connect.Client[GetSessionStateRequest, GetSessionStateResponse]
	listViolations   *connect.Client[ListViolationsRequest, ListViolationsResponse]
	listRoundResults *connect.Client[ListRoundResultsRequest, ListRoundResultsResponse]
	endSession       *connect.Client[EndSessionRequest, EndSessionResponse]
}

func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &SessionServiceClient{
		startSession:     connect.NewClient[StartSessionRequest, StartSessionResponse](httpClient, baseURL+SessionServiceStartSessionProcedure, opts...),
		getSessionState:  connect.NewClient[GetSessionStateRequest, GetSessionStateResponse](httpClient, baseURL+SessionServiceGetSessionStateProcedure, opts...),
		listViolations:   connect.NewClient[ListViolationsRequest, ListViolationsResponse](httpClient, baseURL+SessionServiceListViolationsProcedure, opts...),
		listRoundResults: connect.NewClient[ListRoundResultsRequest, ListRoundResultsResponse](httpClient, baseURL+SessionServiceListRoundResultsProcedure, opts...),
		endSession:       connect.NewClient[EndSessionRequest, EndSessionResponse](httpClient, baseURL+SessionServiceEndSessionProcedure, opts...),
	}
}

func (c *SessionServiceClient) StartSession(ctx context.Context, req *connect.Request[StartSessionRequest]) (*connect.Response[StartSessionResponse], error) {
	return c.startSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) GetSessionState(ctx context.Context, req *connect.Request[GetSessionStateRequest]) (*connect.Response[GetSessionStateResponse], error) {
	return c.getSessionState.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ListViolations(ctx context.Context, req *connect.Request[ListViolationsRequest]) (*connect.Response[ListViolationsResponse], error) {
	return c.listViolations.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ListRoundResults(ctx context.Context, req *connect.Request[ListRoundResultsRequest]) (*connect.Response[ListRoundResultsResponse], error) {
	return c.listRoundResults.CallUnary(ctx, req)
}

func (c *SessionServiceClient) EndSession(ctx context.Context, req *connect.Request[EndSessionRequest]) (*connect.Response[EndSessionResponse], error) {
	return c.endSession.CallUnary(ctx, req)
}
