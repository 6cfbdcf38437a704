package backend

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const sogouURL = "https://fanyi.sogou.com/api/transpc/text/result"

// Sogou credential fields.
const (
	SogouSignField = "sgSignId"
	SogouAppField  = "sgAppId"
)

var sogouCodes = map[string]string{
	"zh":    "zh-CHS",
	"zh-cn": "zh-CHS",
	"zh-tw": "zh-CHT",
}

var sogouFromCodes = invert(sogouCodes)

var sogouSentinels = []sentinel{
	{"sign error", domain.ErrCredentialExpired},
	{"不支持", domain.ErrUnsupportedPair},
}

// Sogou is the Sogou Fanyi web API. Requests are signed with the md5 of the
// language pair, text and the page's secret code, and must carry the site as
// referer.
type Sogou struct {
	// NewID returns the per-request id; uuid.NewString when nil.
	NewID func() string
}

func (Sogou) ID() string { return "sogou" }

type sogouRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Text     string `json:"text"`
	Client   string `json:"client"`
	FR       string `json:"fr"`
	NeedQC   int    `json:"needQc"`
	S        string `json:"s"`
	UUID     string `json:"uuid"`
	Exchange bool   `json:"exchange"`
	Token    string `json:"token,omitempty"`
}

func (s Sogou) BuildRequest(q Query) (domain.WireRequest, error) {
	secret := q.Credential.Field(SogouAppField)
	if secret == "" {
		return domain.WireRequest{}, missingCredential("sogou", SogouAppField)
	}

	from := "auto"
	if !q.Auto() {
		from = sogouCode(q.Source)
	}
	to := sogouCode(q.Target)

	newID := s.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	payload, err := json.Marshal(sogouRequest{
		From:   from,
		To:     to,
		Text:   q.Text,
		Client: "pc",
		FR:     "browser_pc",
		NeedQC: 1,
		S:      SogouSign(from, to, q.Text, secret),
		UUID:   newID(),
		Token:  q.Credential.Field(SogouSignField),
	})
	if err != nil {
		return domain.WireRequest{}, err
	}

	return domain.WireRequest{
		URL:    sogouURL,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type": "application/json;charset=UTF-8",
			"Referer":      "https://fanyi.sogou.com/",
			"Origin":       "https://fanyi.sogou.com",
		},
		Body: payload,
	}, nil
}

func (Sogou) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	if !raw.OK() {
		return failStatus(raw, true, sogouSentinels)
	}
	doc, ok := parseJSON(raw.Body)
	if !ok {
		return domain.Unknown(raw.Body)
	}

	tr := doc.Get("data.translate")
	if status := doc.Get("status").Int(); status != 0 || !tr.Exists() {
		msg := doc.Get("info").String()
		if msg == "" {
			msg = doc.Get("message").String()
		}
		if msg == "" {
			return domain.Unknown(raw.Body)
		}
		return failure(msg, domain.ErrBackend, sogouSentinels)
	}

	if code := tr.Get("errorCode").String(); code != "" && code != "0" {
		kind := domain.ErrBackend
		if code == "s10" || code == "s11" {
			kind = domain.ErrCredentialExpired
		}
		return failure("errorCode "+code, kind, sogouSentinels)
	}

	lang := doc.Get("data.detect.detect").String()
	if lang == "" {
		lang = tr.Get("from").String()
	}
	return domain.Translation(tr.Get("dit").String(), detected(pc.Query, fromSogou(lang)))
}

// SogouSign returns the request signature.
func SogouSign(from, to, text, secret string) string {
	sum := md5.Sum([]byte(from + to + text + secret))
	return hex.EncodeToString(sum[:])
}

func sogouCode(code string) string {
	if c, ok := sogouCodes[code]; ok {
		return c
	}
	return baseOf(code)
}

func fromSogou(code string) string {
	if c, ok := sogouFromCodes[code]; ok {
		return c
	}
	return code
}
