package http

import (
	"encoding/json"
	"errors"
	"net/http"
)

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}
