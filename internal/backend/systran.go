package backend

import (
	"encoding/json"
	"net/http"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const systranURL = "https://translate.systran.net/translationTools/api/translation/text/translate"

// SystranAppField is the CSRF token of the translation tools page.
const SystranAppField = "stAppId"

var systranSentinels = []sentinel{
	{"no queue defined for this language pair", domain.ErrUnsupportedPair},
	{"language pair", domain.ErrUnsupportedPair},
	{"csrf", domain.ErrCredentialExpired},
}

// Systran is the SYSTRAN translate web tools API.
type Systran struct{}

func (Systran) ID() string { return "systran" }

type systranRequest struct {
	Input  []string `json:"input"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

func (Systran) BuildRequest(q Query) (domain.WireRequest, error) {
	csrf := q.Credential.Field(SystranAppField)
	if csrf == "" {
		return domain.WireRequest{}, missingCredential("systran", SystranAppField)
	}

	source := "auto"
	if !q.Auto() {
		source = baseOf(q.Source)
	}
	payload, err := json.Marshal(systranRequest{
		Input:  []string{q.Text},
		Source: source,
		Target: baseOf(q.Target),
		Format: "text",
	})
	if err != nil {
		return domain.WireRequest{}, err
	}

	return domain.WireRequest{
		URL:    systranURL,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type": "application/json",
			"X-Csrf-Token": csrf,
		},
		Body: payload,
	}, nil
}

func (Systran) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, ok := parseJSON(raw.Body)
	if errMsg := doc.Get("error.message"); ok && errMsg.Exists() {
		kind := domain.ErrBackend
		switch doc.Get("error.statusCode").Int() {
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = domain.ErrCredentialExpired
		}
		return failure(errMsg.String(), kind, systranSentinels)
	}
	if !raw.OK() {
		return failStatus(raw, true, systranSentinels)
	}
	if !ok {
		return domain.Unknown(raw.Body)
	}

	out := doc.Get("outputs.0")
	if msg := out.Get("error"); msg.Exists() {
		return failure(msg.String(), domain.ErrBackend, systranSentinels)
	}
	text := out.Get("output")
	if !text.Exists() {
		return domain.Unknown(raw.Body)
	}
	return domain.Translation(text.String(), detected(pc.Query, out.Get("detectedLanguage").String()))
}
