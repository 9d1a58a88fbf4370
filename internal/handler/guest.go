package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
)

// Guest registers or refreshes a guest session from {key, name}. A missing
// key gets a fresh UUID.
func (h *Handler) Guest(w http.ResponseWriter, r *http.Request) {
	var key, name string
	if err := decodeBody(w, r, func(d *jx.Decoder, k string) error {
		var err error
		switch k {
		case "key", "user_key":
			key, err = decodeString(d)
		case "name":
			name, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if key == "" {
		key = uuid.NewString()
	}
	u, err := h.Users.Guest(r.Context(), key, name)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(true)
			e.FieldStart("user")
			encodeUser(e, u)
		})
	})
}
