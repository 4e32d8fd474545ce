package transport_test

import (
	"encoding/json"
	"net/http"
)

func decodeJSON(resp *http.Response, v interface{}) error {
	return json.NewDecoder(resp.Body).Decode(v)
}
