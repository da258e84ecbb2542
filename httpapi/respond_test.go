package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goFleet "github.com/MrEthical07/goFleet"
	"github.com/MrEthical07/goFleet/device"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
		msg  string
	}{
		{goFleet.ErrInvalidCredentials, http.StatusUnauthorized, "Login failed: Incorrect username or password"},
		{goFleet.ErrUnauthenticated, http.StatusUnauthorized, "Please authenticate"},
		{goFleet.ErrReAuthRequired, http.StatusUnauthorized, "Please authenticate"},
		{goFleet.ErrDuplicateIdentity, http.StatusConflict, "Username already taken"},
		{goFleet.ErrNotFound, http.StatusNotFound, "Not found"},
		{fmt.Errorf("%w: password too short", goFleet.ErrValidationFailed), http.StatusBadRequest, "password too short"},
		{fmt.Errorf("%w: name is required", device.ErrInvalid), http.StatusBadRequest, "name is required"},
		{goFleet.ErrRateLimited, http.StatusTooManyRequests, "Too many requests, please try again later"},
		{errors.New("db error: connection reset"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		status, msg := StatusFor(tc.err)
		if status != tc.want || msg != tc.msg {
			t.Fatalf("StatusFor(%v) = %d %q, want %d %q", tc.err, status, msg, tc.want, tc.msg)
		}
	}
}
