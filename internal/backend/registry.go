package backend

import (
	"fmt"
	"regexp"
	"time"

	"github.com/pricofy/translation-gateway/internal/credential"
	"github.com/pricofy/translation-gateway/internal/domain"
)

// DefaultMaxChunk is used by descriptors without a chunk limit.
const DefaultMaxChunk = 300

// Descriptor is one row of the backend table.
type Descriptor struct {
	ID   string
	Name string
	// MaxChunk is the longest chunk, in characters, the backend accepts.
	MaxChunk int
	// Credential describes how the backend credential is minted; nil for
	// backends that need none.
	Credential *credential.Spec
	// Policy overrides the default refresh policy.
	Policy  *credential.Policy
	Adapter Adapter
}

// Registry is an immutable backend table.
type Registry struct {
	order []string
	byID  map[string]Descriptor
}

// New builds a registry from descriptors.
func New(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byID: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.ID == "" || d.Adapter == nil {
			return nil, fmt.Errorf("invalid backend descriptor %q", d.ID)
		}
		if d.Adapter.ID() != d.ID {
			return nil, fmt.Errorf("backend %q: adapter reports id %q", d.ID, d.Adapter.ID())
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate backend %q", d.ID)
		}
		if d.MaxChunk <= 0 {
			d.MaxChunk = DefaultMaxChunk
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
	}
	return r, nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, id)
	}
	return d, nil
}

// IDs returns the backend ids in table order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// CredentialSpecs returns the credential specs of credentialed backends.
func (r *Registry) CredentialSpecs() map[string]credential.Spec {
	out := make(map[string]credential.Spec)
	for id, d := range r.byID {
		if d.Credential != nil {
			out[id] = *d.Credential
		}
	}
	return out
}

// Policies returns the per-backend refresh policy overrides.
func (r *Registry) Policies() map[string]credential.Policy {
	out := make(map[string]credential.Policy)
	for id, d := range r.byID {
		if d.Policy != nil {
			out[id] = *d.Policy
		}
	}
	return out
}

// Override is a settings-driven change to one descriptor.
type Override struct {
	MaxChunk int
	Policy   credential.Policy
}

// WithOverrides returns a copy of r with overrides applied. Unknown ids are
// an error; zero fields keep the table values.
func (r *Registry) WithOverrides(overrides map[string]Override) (*Registry, error) {
	out := &Registry{order: r.IDs(), byID: make(map[string]Descriptor, len(r.byID))}
	for id, d := range r.byID {
		out.byID[id] = d
	}
	for id, o := range overrides {
		d, ok := out.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, id)
		}
		if o.MaxChunk > 0 {
			d.MaxChunk = o.MaxChunk
		}
		if o.Policy != (credential.Policy{}) {
			base := credential.Policy{}
			if d.Policy != nil {
				base = *d.Policy
			}
			p := o.Policy.Merge(base)
			d.Policy = &p
		}
		out.byID[id] = d
	}
	return out, nil
}

// WithAdapter returns a copy of r with the adapter of a.ID() replaced.
func (r *Registry) WithAdapter(a Adapter) (*Registry, error) {
	d, err := r.Lookup(a.ID())
	if err != nil {
		return nil, err
	}
	out := &Registry{order: r.IDs(), byID: make(map[string]Descriptor, len(r.byID))}
	for id, desc := range r.byID {
		out.byID[id] = desc
	}
	d.Adapter = a
	out.byID[d.ID] = d
	return out, nil
}

// field compiles a case-insensitive multi-line pattern.
func field(name, pattern string) credential.Field {
	return credential.Field{Name: name, Pattern: regexp.MustCompile(`(?im)` + pattern)}
}

// Default returns the built-in backends.
func Default() *Registry {
	r, err := New(
		Descriptor{
			ID:       "google",
			Name:     "Google Translate",
			MaxChunk: 350,
			Adapter:  Google{},
		},
		Descriptor{
			ID:       "bing",
			Name:     "Microsoft Bing Translator",
			MaxChunk: 300,
			Credential: &credential.Spec{
				CookieURL: "https://www.bing.com/translator",
				SourceURL: "https://www.bing.com/translator",
				Fields: []credential.Field{
					field(BingSignField, `params_AbusePreventionHelper\s*=\s*\[\s*(\d+)\s*,['"]`),
					field(BingAppField, `params_AbusePreventionHelper\s*=\s*\[\s*\d+\s*,['"]([^'"]+)['"]\s*,`),
				},
			},
			Adapter: Bing{},
		},
		Descriptor{
			ID:       "yandex",
			Name:     "Yandex.Translate",
			MaxChunk: 350,
			Credential: &credential.Spec{
				SourceURL: "https://translate.yandex.com",
				Fields: []credential.Field{
					field(YandexSignField, `Ya.reqid\s*=\s*['"]([^'"]+)['"];`),
					field(YandexAppField, `,\s+SID:\s*['"]([^'"]+)['"],\s+`),
				},
			},
			Adapter: Yandex{},
		},
		Descriptor{
			ID:       "promt",
			Name:     "PROMT Online-Translator",
			MaxChunk: 300,
			Credential: &credential.Spec{
				SourceURL: "https://m.online-translator.com/translation",
				Fields: []credential.Field{
					field(PromtSignField, `["']_paft["'][^>]+value=["']([^"']+)["']`),
					field(PromtAppField, `["']_xsrf["'][^>]+value=["']([^"']+)["']`),
				},
			},
			Adapter: Promt{},
		},
		Descriptor{
			ID:       "urban",
			Name:     "Urban Dictionary",
			MaxChunk: 100,
			Credential: &credential.Spec{
				SourceURL: "https://m.urbandictionary.com/javascripts/application.js",
				Fields:    []credential.Field{field(UrbanAppField, `\?key=([0-9a-z]+)`)},
			},
			Adapter: Urban{},
		},
		Descriptor{
			ID:       "baidu",
			Name:     "Baidu Fanyi",
			MaxChunk: 300,
			Credential: &credential.Spec{
				CookieURL: "https://fanyi.baidu.com/",
				SourceURL: "https://fanyi.baidu.com/",
				Fields: []credential.Field{
					field(BaiduSignField, `window.gtk[\s]*=[\s]*['"]([0-9\.]+)['"]`),
					field(BaiduAppField, `token:[\s]*['"]([0-9a-z]+)['"]`),
				},
			},
			Adapter: Baidu{},
		},
		Descriptor{
			ID:       "sogou",
			Name:     "Sogou Fanyi",
			MaxChunk: 300,
			Credential: &credential.Spec{
				CookieURL: "https://fanyi.sogou.com/",
				SourceURL: "https://fanyi.sogou.com/text",
				Fields: []credential.Field{
					field(SogouSignField, `["']ServerSgtkn["'][\s]*:[\s]*['"]([0-9a-z]+)['"]`),
					field(SogouAppField, `["']secretCode["'][\s]*:[\s]*([0-9]+)`),
				},
			},
			Adapter: Sogou{},
		},
		Descriptor{
			ID:       "systran",
			Name:     "SYSTRAN Translate",
			MaxChunk: 300,
			Credential: &credential.Spec{
				SourceURL: "https://translate.systran.net/translationTools/text",
				Fields:    []credential.Field{field(SystranAppField, `window.csrfToken[\s]*=[\s]*['"]([^'"]+)['"]`)},
			},
			Adapter: Systran{},
		},
		Descriptor{
			ID:       "papago",
			Name:     "Naver Papago",
			MaxChunk: 300,
			Credential: &credential.Spec{
				SourceURL: "https://papago.naver.com",
				Discover:  regexp.MustCompile(`"([^"]*home\.[^"]+.js)"`),
				Fields:    []credential.Field{field(PapagoAppField, `AUTH_KEY:["']([^'"]+)["']`)},
			},
			Adapter: NewPapago(),
		},
		Descriptor{
			ID:       "lingvanex",
			Name:     "Lingvanex",
			MaxChunk: 300,
			Credential: &credential.Spec{
				SourceURL: "https://lingvanex.com/lingvanex_demo_page/js/api-base.js",
				Fields:    []credential.Field{field(LingvanexAppField, `B2B_AUTH_TOKEN[\s]*=[\s]*['"]([^'"]+)['"]`)},
			},
			// the demo token rotates rarely
			Policy:  &credential.Policy{MaxAge: 12 * time.Hour},
			Adapter: Lingvanex{},
		},
		Descriptor{
			ID:       "mymemory",
			Name:     "MyMemory",
			MaxChunk: 450,
			Adapter:  MyMemory{},
		},
		Descriptor{
			ID:       "apertium",
			Name:     "Apertium",
			MaxChunk: 350,
			Adapter:  Apertium{},
		},
		Descriptor{
			ID:       "glosbe",
			Name:     "Glosbe",
			MaxChunk: 100,
			Adapter:  Glosbe{},
		},
		Descriptor{
			ID:       "opus",
			Name:     "Opus-MT (AWS Lambda)",
			MaxChunk: 300,
			Adapter:  Opus{},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
