package backend

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// DefaultOpusPrefix prefixes the translator function names.
const DefaultOpusPrefix = "pricofy-translator-"

var (
	// Romance languages supported by opus-mt-ROMANCE-en / opus-mt-en-ROMANCE.
	// All of them translate to and from English through the romance functions.
	romanceLanguages = map[string]bool{
		// Spanish variants
		"es": true, "es_AR": true, "es_CL": true, "es_CO": true, "es_CR": true,
		"es_DO": true, "es_EC": true, "es_ES": true, "es_GT": true, "es_HN": true,
		"es_MX": true, "es_NI": true, "es_PA": true, "es_PE": true, "es_PR": true,
		"es_SV": true, "es_UY": true, "es_VE": true,
		// French variants
		"fr": true, "fr_BE": true, "fr_CA": true, "fr_FR": true,
		"wa":  true, // Walloon
		"frp": true, // Franco-Provençal
		"oc":  true, // Occitan
		// Italian variants
		"it":  true,
		"co":  true, // Corsican
		"nap": true, // Neapolitan
		"scn": true, // Sicilian
		"vec": true, // Venetian
		// Portuguese variants
		"pt": true, "pt_BR": true, "pt_PT": true,
		"gl":  true, // Galician
		"mwl": true, // Mirandese
		// Catalan and related
		"ca":  true, // Catalan
		"an":  true, // Aragonese
		"lad": true, // Ladino
		"ro":  true,
		// Other Romance
		"la":  true, // Latin
		"rm":  true, // Romansh
		"lld": true, // Ladin
		"fur": true, // Friulian
		"lij": true, // Ligurian
		"lmo": true, // Lombard
		"sc":  true, // Sardinian
	}

	opusLanguages = map[string]bool{"de": true, "en": true}
)

func init() {
	for lang := range romanceLanguages {
		opusLanguages[lang] = true
	}
}

// opusStep is one translator invocation. Target is only set for the
// en-romance model, which serves several target languages.
type opusStep struct {
	model  string
	target string
}

// opusRequest is the payload of the translator functions.
type opusRequest struct {
	Chunks     [][]string `json:"chunks"`
	TargetLang string     `json:"target_lang,omitempty"`
}

// Opus routes to the self-hosted opus-mt translators deployed as Lambda
// functions. Pairs without English pivot through it in two hops.
type Opus struct {
	// Prefix is prepended to the model name to form the function name.
	Prefix string
	// Qualifier selects a function alias or version.
	Qualifier string
}

func (Opus) ID() string { return "opus" }

// IsValidPair reports whether source can be translated into target.
func (Opus) IsValidPair(source, target string) bool {
	source, target = opusCode(source), opusCode(target)
	return opusLanguages[source] && opusLanguages[target] && source != target
}

// SupportedLanguages returns the supported codes, sorted.
func (Opus) SupportedLanguages() []string {
	langs := make([]string, 0, len(opusLanguages))
	for lang := range opusLanguages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// opusAutoDetectMessage is reported for requests without a source
// language. The opus models cannot detect one.
const opusAutoDetectMessage = "opus: auto-detection is not available, set a source language"

func (o Opus) BuildRequest(q Query) (domain.WireRequest, error) {
	if q.Auto() {
		return domain.WireRequest{}, &domain.BackendError{Kind: domain.ErrUnsupportedPair, Message: opusAutoDetectMessage}
	}
	route := opusRoute(opusCode(q.Source), opusCode(q.Target))
	if route == nil {
		return domain.WireRequest{}, unsupported(q, "opus")
	}
	return o.invoke(route[0], q.Text)
}

// Continue sends the English pivot to the second model.
func (o Opus) Continue(q Query, hop int, prev domain.Result) (domain.WireRequest, bool, error) {
	route := opusRoute(opusCode(q.Source), opusCode(q.Target))
	if hop >= len(route) {
		return domain.WireRequest{}, false, nil
	}
	req, err := o.invoke(route[hop], prev.Text)
	return req, err == nil, err
}

func (Opus) ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result {
	doc, ok := parseJSON(raw.Body)
	if !raw.OK() {
		if msg := doc.Get("errorMessage"); ok && msg.Exists() {
			return failure(msg.String(), domain.ErrBackend, nil)
		}
		return failStatus(raw, false, nil)
	}
	if !ok {
		return domain.Unknown(raw.Body)
	}
	if msg := doc.Get("error").String(); msg != "" {
		return failure("translator error: "+msg, domain.ErrBackend, nil)
	}

	translations := doc.Get("translations.0")
	if !translations.IsArray() {
		return domain.Unknown(raw.Body)
	}
	parts := make([]string, 0, len(translations.Array()))
	for _, t := range translations.Array() {
		parts = append(parts, t.String())
	}
	return domain.Translation(strings.Join(parts, " "), "")
}

func (o Opus) invoke(step opusStep, text string) (domain.WireRequest, error) {
	payload, err := json.Marshal(opusRequest{
		Chunks:     [][]string{{text}},
		TargetLang: step.target,
	})
	if err != nil {
		return domain.WireRequest{}, err
	}

	prefix := o.Prefix
	if prefix == "" {
		prefix = DefaultOpusPrefix
	}
	u := url.URL{Scheme: "lambda", Host: prefix + step.model}
	if o.Qualifier != "" {
		u.RawQuery = url.Values{"qualifier": {o.Qualifier}}.Encode()
	}
	return domain.WireRequest{URL: u.String(), Body: payload}, nil
}

// opusRoute returns the models to call in sequence, or nil for an
// unsupported pair.
func opusRoute(source, target string) []opusStep {
	switch {
	case source == target:
		return nil

	case target == "en" && romanceLanguages[source]:
		return []opusStep{{model: "romance-en"}}
	case target == "en" && source == "de":
		return []opusStep{{model: "de-en"}}

	case source == "en" && romanceLanguages[target]:
		return []opusStep{{model: "en-romance", target: target}}
	case source == "en" && target == "de":
		return []opusStep{{model: "en-de"}}

	// pivot through English
	case romanceLanguages[source] && romanceLanguages[target]:
		return []opusStep{{model: "romance-en"}, {model: "en-romance", target: target}}
	case romanceLanguages[source] && target == "de":
		return []opusStep{{model: "romance-en"}, {model: "en-de"}}
	case source == "de" && romanceLanguages[target]:
		return []opusStep{{model: "de-en"}, {model: "en-romance", target: target}}
	}
	return nil
}

// opusCode turns "es-mx" into "es_MX".
func opusCode(code string) string {
	base, region, ok := strings.Cut(strings.ReplaceAll(code, "_", "-"), "-")
	if !ok {
		return strings.ToLower(base)
	}
	return strings.ToLower(base) + "_" + strings.ToUpper(region)
}
