package backend

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	papagoTranslateURL = "https://papago.naver.com/apis/n2mt/translate"
	papagoDetectURL    = "https://papago.naver.com/apis/langs/dect"
)

// PapagoAppField is the AUTH_KEY found in the home script.
const PapagoAppField = "nvAppId"

var papagoCodes = map[string]string{
	"zh":    "zh-CN",
	"zh-cn": "zh-CN",
	"zh-tw": "zh-TW",
}

var papagoFromCodes = invert(papagoCodes)

var papagoSentinels = []sentinel{
	{"authentication failed", domain.ErrCredentialExpired},
	{"n2mt05", domain.ErrUnsupportedPair},
	{"unsupported", domain.ErrUnsupportedPair},
}

// Papago is Naver Papago. Every call carries an HMAC-MD5 authorization
// header keyed by the AUTH_KEY; an unknown source is detected first.
type Papago struct {
	deviceID string
	now      func() time.Time
}

// NewPapago creates the adapter with a random device id.
func NewPapago() *Papago {
	return &Papago{deviceID: uuid.NewString(), now: time.Now}
}

func (*Papago) ID() string { return "papago" }

func (p *Papago) BuildRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		v := url.Values{}
		v.Set("query", q.Text)
		return p.form(papagoDetectURL, q, v)
	}
	return p.translate(q, q.Source)
}

// Continue follows a detection with the translation request.
func (p *Papago) Continue(q Query, hop int, prev domain.Result) (domain.WireRequest, bool, error) {
	if !q.Auto() || hop != 1 {
		return domain.WireRequest{}, false, nil
	}
	if prev.DetectedLang == "" || prev.DetectedLang == "unk" {
		return domain.WireRequest{}, false, unsupported(q, "papago")
	}
	req, err := p.translate(q, prev.DetectedLang)
	return req, err == nil, err
}

func (p *Papago) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, ok := parseJSON(raw.Body)
	if ok {
		if code := doc.Get("errorCode"); code.Exists() {
			msg := doc.Get("errorMessage").String()
			if msg == "" {
				msg = code.String()
			}
			return failure(code.String()+": "+msg, domain.ErrBackend, papagoSentinels)
		}
	}
	if !raw.OK() {
		return failStatus(raw, true, papagoSentinels)
	}
	if !ok {
		return domain.Unknown(raw.Body)
	}

	if pc.Query.Auto() && pc.Hop == 0 {
		lang := doc.Get("langCode")
		if !lang.Exists() {
			return domain.Unknown(raw.Body)
		}
		return domain.Translation("", fromPapago(lang.String()))
	}

	text := doc.Get("translatedText")
	if !text.Exists() {
		return domain.Unknown(raw.Body)
	}
	return domain.Translation(text.String(), detected(pc.Query, fromPapago(doc.Get("srcLangType").String())))
}

func (p *Papago) translate(q Query, source string) (domain.WireRequest, error) {
	v := url.Values{}
	v.Set("deviceId", p.deviceID)
	v.Set("locale", "en")
	v.Set("dict", "false")
	v.Set("honorific", "false")
	v.Set("instant", "false")
	v.Set("paging", "false")
	v.Set("source", papagoCode(source))
	v.Set("target", papagoCode(q.Target))
	v.Set("text", q.Text)
	return p.form(papagoTranslateURL, q, v)
}

func (p *Papago) form(endpoint string, q Query, v url.Values) (domain.WireRequest, error) {
	key := q.Credential.Field(PapagoAppField)
	if key == "" {
		return domain.WireRequest{}, missingCredential("papago", PapagoAppField)
	}

	ts := strconv.FormatInt(p.now().UnixMilli(), 10)
	return domain.WireRequest{
		URL:    endpoint,
		Method: http.MethodPost,
		Header: map[string]string{
			"Content-Type":  "application/x-www-form-urlencoded; charset=UTF-8",
			"Authorization": "PPG " + p.deviceID + ":" + PapagoToken(key, p.deviceID, endpoint, ts),
			"Timestamp":     ts,
			"Device-Type":   "pc",
		},
		Body: []byte(v.Encode()),
	}, nil
}

// PapagoToken signs deviceID, endpoint and timestamp with key.
func PapagoToken(key, deviceID, endpoint, timestamp string) string {
	mac := hmac.New(md5.New, []byte(key))
	mac.Write([]byte(deviceID + "\n" + endpoint + "\n" + timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func papagoCode(code string) string {
	if c, ok := papagoCodes[code]; ok {
		return c
	}
	return baseOf(code)
}

func fromPapago(code string) string {
	if c, ok := papagoFromCodes[code]; ok {
		return c
	}
	return code
}
