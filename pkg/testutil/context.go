package testutil

import (
	"net/http"

	id "churnboard/pkg/domain"
	"churnboard/pkg/requestcontext"
)

// WithUserID marks req as authenticated the way RequireAuth does. A
// malformed userID leaves the request anonymous, which handlers reject.
func WithUserID(req *http.Request, userID string) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithClient sets the caller address and user agent the metadata middleware
// would resolve.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
