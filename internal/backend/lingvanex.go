package backend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const lingvanexURL = "https://api-b2b.backenster.com/b1/api/v3/translate"

// LingvanexAppField is the B2B bearer token of the demo page.
const LingvanexAppField = "lnAppId"

// lingvanexRegions gives the default locale used by the API for a base
// language; unlisted languages use the language itself as region.
var lingvanexRegions = map[string]string{
	"en": "GB",
	"ar": "SA",
	"cs": "CZ",
	"da": "DK",
	"el": "GR",
	"ja": "JP",
	"ko": "KR",
	"sv": "SE",
	"uk": "UA",
	"zh": "Hans",
}

var lingvanexSentinels = []sentinel{
	{"unauthorized", domain.ErrCredentialExpired},
	{"not supported", domain.ErrUnsupportedPair},
}

// Lingvanex is the Lingvanex B2B API as used by its public demo.
type Lingvanex struct{}

func (Lingvanex) ID() string { return "lingvanex" }

type lingvanexRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to"`
	Data     string `json:"data"`
	Platform string `json:"platform"`
}

func (Lingvanex) BuildRequest(q Query) (domain.WireRequest, error) {
	token := q.Credential.Field(LingvanexAppField)
	if token == "" {
		return domain.WireRequest{}, missingCredential("lingvanex", LingvanexAppField)
	}
	if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = "Bearer " + token
	}

	req := lingvanexRequest{
		To:       lingvanexCode(q.Target),
		Data:     q.Text,
		Platform: "dp",
	}
	if !q.Auto() {
		req.From = lingvanexCode(q.Source)
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.WireRequest{}, err
	}

	return domain.WireRequest{
		URL:    lingvanexURL,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": token,
		},
		Body: payload,
	}, nil
}

func (Lingvanex) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, true, lingvanexSentinels)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if msg := doc.Get("err"); msg.Type != gjson.Null && msg.String() != "" {
		return failure(msg.String(), domain.ErrBackend, lingvanexSentinels)
	}

	result := doc.Get("result")
	if !result.Exists() {
		return domain.Unknown(raw.Body)
	}
	from, _, _ := strings.Cut(doc.Get("from").String(), "_")
	return domain.Translation(result.String(), detected(pc.Query, from))
}

// lingvanexCode turns "pt-br" into "pt_BR" and "de" into "de_DE".
func lingvanexCode(code string) string {
	base, region, ok := strings.Cut(code, "-")
	if !ok {
		region, ok = lingvanexRegions[base]
		if !ok {
			region = base
		}
	}
	if len(region) == 2 {
		region = strings.ToUpper(region)
	}
	return base + "_" + region
}
