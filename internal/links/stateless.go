package links

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"santa.share/internal/crypto"
	"santa.share/internal/models"
)

// Stateless links look like <base>/reveal/<id>?data=<json>#<key> where the
// JSON is {"e":<ciphertext>,"i":<iv>}. The id only serves routing; nothing is
// stored, so nothing stops a second viewing except the sealed expiry.
type Stateless struct {
	BaseURL string
}

var _ Protocol = (*Stateless)(nil)

type statelessData struct {
	E string `json:"e"`
	I string `json:"i"`
}

func (s *Stateless) Mode() Mode { return ModeStateless }

func (s *Stateless) Publish(ctx context.Context, records []models.PairingRecord) error {
	return nil
}

func (s *Stateless) Link(rec models.PairingRecord) string {
	data, _ := json.Marshal(statelessData{
		E: crypto.EncodeBase64URL(rec.Ciphertext),
		I: crypto.EncodeBase64URL(rec.IV),
	})
	// QueryEscape and encodeURIComponent agree on the JSON and base64url
	// alphabet, so browser-built and CLI-built links are identical.
	return revealURL(s.BaseURL, rec.ID) + "?data=" + url.QueryEscape(string(data)) +
		"#" + crypto.EncodeBase64URL(rec.Key)
}

func (s *Stateless) Fetch(ctx context.Context, req Request) (Sealed, error) {
	if req.Data == "" {
		return Sealed{}, fmt.Errorf("%w: missing data", ErrMalformedLink)
	}

	var d statelessData
	if err := json.Unmarshal([]byte(req.Data), &d); err != nil {
		return Sealed{}, fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}

	return decodeSealed(d.E, d.I)
}
