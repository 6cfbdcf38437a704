package backend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const promtURL = "https://m.online-translator.com/services/soap.asmx/GetTranslation"

// PROMT credential fields.
const (
	PromtSignField = "ptSignId"
	PromtAppField  = "ptAppId"
)

var promtSentinels = []sentinel{
	{"direction", domain.ErrUnsupportedPair},
	{"xsrf", domain.ErrCredentialExpired},
}

// Promt is the PROMT online-translator mobile service. It authenticates with
// the anti-forgery pair taken from the mobile form.
type Promt struct{}

func (Promt) ID() string { return "promt" }

type promtRequest struct {
	DirCode       string `json:"dirCode"`
	Template      string `json:"template"`
	Text          string `json:"text"`
	Lang          string `json:"lang"`
	Limit         int    `json:"limit"`
	UseAutoDetect bool   `json:"useAutoDetect"`
	Key           string `json:"key"`
	TS            string `json:"ts"`
	TID           string `json:"tid"`
	IsMobile      bool   `json:"IsMobile"`
}

func (Promt) BuildRequest(q Query) (domain.WireRequest, error) {
	xsrf := q.Credential.Field(PromtAppField)
	if xsrf == "" {
		return domain.WireRequest{}, missingCredential("promt", PromtAppField)
	}

	source := "a"
	if !q.Auto() {
		source = baseOf(q.Source)
	}
	payload, err := json.Marshal(promtRequest{
		DirCode:       source + "-" + baseOf(q.Target),
		Template:      "auto",
		Text:          q.Text,
		Lang:          "en",
		Limit:         3000,
		UseAutoDetect: q.Auto(),
		Key:           q.Credential.Field(PromtSignField),
		TS:            "MainSite",
		IsMobile:      true,
	})
	if err != nil {
		return domain.WireRequest{}, err
	}

	return domain.WireRequest{
		URL:    promtURL,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"X-Xsrftoken":  xsrf,
		},
		Body: payload,
	}, nil
}

func (Promt) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, true, promtSentinels)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}

	d := doc.Get("d")
	if !d.Exists() {
		return domain.Unknown(raw.Body)
	}
	if code := d.Get("errCode").Int(); code != 0 {
		msg := d.Get("errMessage").String()
		if msg == "" {
			msg = "error " + d.Get("errCode").String()
		}
		return failure(msg, domain.ErrBackend, promtSentinels)
	}

	result := d.Get("result")
	if !result.Exists() {
		return domain.Unknown(raw.Body)
	}
	return domain.Translation(result.String(), detected(pc.Query, d.Get("from").String()))
}

// baseOf strips the region subtag.
func baseOf(code string) string {
	base, _, _ := strings.Cut(code, "-")
	return base
}
