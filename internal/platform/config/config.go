package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"optin/internal/consent/models"
	dErrors "optin/pkg/domain-errors"
	pstrings "optin/pkg/platform/strings"
)

// Config is built once at startup and passed by value.
type Config struct {
	Server  Server  `yaml:"server"`
	Consent Consent `yaml:"consent"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Environment     string        `yaml:"environment"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TracingEnabled  bool          `yaml:"tracing_enabled"`
}

// Consent configures the consent cookie, the panel and the content gate.
type Consent struct {
	CookieName  string `yaml:"optin_cookie_name"`
	ExpiresDays int    `yaml:"expires"`
	// Idle is the window after which an undecided visitor is recorded as
	// declined. Zero disables it. The YAML key idle is read by UnmarshalYAML.
	Idle   time.Duration `yaml:"-"`
	Secure bool          `yaml:"secure"`
	Path   string        `yaml:"path"`
	Domain string        `yaml:"domain"`

	// AssociatedCookies maps a category name to the cookies purged when
	// consent for it is withdrawn.
	AssociatedCookies map[string][]string `yaml:"associated_cookies"`
	// FunctionalList maps a category name to what the site will and will not
	// do at that level.
	FunctionalList map[string]FeatureList `yaml:"functional_list"`

	Text PanelText `yaml:"text"`
	// PanelURL is where placeholder controls send the visitor to open the
	// preference panel.
	PanelURL string `yaml:"panel_url"`
}

// FeatureList is the will/will-not pair listed for one category.
type FeatureList struct {
	Will    []string `yaml:"will"`
	WillNot []string `yaml:"willnot"`
}

// PanelText is the user-facing copy. Nothing is translated at runtime.
type PanelText struct {
	Title          string `yaml:"title"`
	Message        string `yaml:"message"`
	Cancel         string `yaml:"cancel"`
	AcceptAll      string `yaml:"accept_all"`
	RejectAll      string `yaml:"reject_all"`
	ChangeSettings string `yaml:"change_settings"`
	Save           string `yaml:"save"`
	LinkText       string `yaml:"link_text"`
	LinkURL        string `yaml:"link_url"`

	BlockedHeading    string `yaml:"blocked_heading"`
	BlockedFunctional string `yaml:"blocked_functional"`
	BlockedTargeting  string `yaml:"blocked_targeting"`
	BlockedFeature    string `yaml:"blocked_feature"`
	BlockedShare      string `yaml:"blocked_share"`
	BlockedControl    string `yaml:"blocked_control"`
}

// Defaults.
const (
	DefaultCookieName  = "EU_OPTIN"
	DefaultExpiresDays = 30
	DefaultPanelURL    = "/consent/panel?view=options"
)

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     "development",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Consent: DefaultConsent(),
	}
}

// DefaultConsent returns the consent defaults.
func DefaultConsent() Consent {
	return Consent{
		CookieName:        DefaultCookieName,
		ExpiresDays:       DefaultExpiresDays,
		AssociatedCookies: map[string][]string{},
		FunctionalList: map[string]FeatureList{
			"strict": {
				Will: []string{"Remember what is in your shopping basket", "Remember cookie access level."},
				WillNot: []string{
					"Send information to other websites so that advertising is more relevant to you",
					"Remember your log-in details",
					"Improve overall performance of the website",
					"Provide you with live, online chat support",
				},
			},
			"functional": {
				Will: []string{
					"Remember what is in your shopping basket",
					"Remember cookie access level.",
					"Remember your log-in details",
					"Make sure the website looks consistent",
					"Offer live chat support",
				},
				WillNot: []string{
					"Allow you to share pages with social networks like Facebook",
					"Allow you to comment on blogs",
					"Send information to other websites so that advertising is more relevant to you",
				},
			},
			"targeting": {
				Will: []string{
					"Remember what is in your shopping basket",
					"Remember cookie access level.",
					"Remember your log-in details",
					"Make sure the website looks consistent",
					"Offer live chat support",
					"Send information to other websites so that advertising is more relevant to you",
				},
			},
		},
		Text: PanelText{
			Title:             "About cookies",
			Message:           "We use cookies to give you the best possible browsing experience on our site.",
			Cancel:            "I agree",
			AcceptAll:         "Accept all",
			RejectAll:         "Reject all",
			ChangeSettings:    "Change settings",
			Save:              "Save settings",
			LinkText:          "Find out more about cookies",
			LinkURL:           "/cookies",
			BlockedHeading:    "Attention",
			BlockedFunctional: "To see this content you need to enable functional cookies.",
			BlockedTargeting:  "To see this content you need to enable advertising cookies.",
			BlockedFeature:    "To use every feature of this page you need to enable cookies.",
			BlockedShare:      "To share this page you need to enable cookies.",
			BlockedControl:    "Review your settings",
		},
		PanelURL: DefaultPanelURL,
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
// When OPTIN_CONFIG_FILE is set, the file is merged over the defaults first
// and the environment wins over both.
func FromEnv() (Config, error) {
	cfg := Default()

	if path := os.Getenv("OPTIN_CONFIG_FILE"); path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if addr := os.Getenv("OPTIN_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if env := os.Getenv("OPTIN_ENV"); env != "" {
		cfg.Server.Environment = env
	}
	cfg.Server.TracingEnabled = cfg.Server.TracingEnabled || os.Getenv("OPTIN_TRACING") == "true"

	if name := os.Getenv("OPTIN_COOKIE_NAME"); name != "" {
		cfg.Consent.CookieName = name
	}
	if raw := os.Getenv("OPTIN_EXPIRES_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, dErrors.Wrap(err, dErrors.CodeInvalidConfig, "OPTIN_EXPIRES_DAYS must be an integer")
		}
		cfg.Consent.ExpiresDays = days
	}
	if raw := os.Getenv("OPTIN_IDLE_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, dErrors.Wrap(err, dErrors.CodeInvalidConfig, "OPTIN_IDLE_SECONDS must be an integer")
		}
		cfg.Consent.Idle = time.Duration(secs) * time.Second
	}
	if os.Getenv("OPTIN_SECURE") == "true" {
		cfg.Consent.Secure = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file and merges it over Default. Keys absent from the
// file keep their default values.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeInvalidConfig, "read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over Default. Maps present in the document replace the
// default maps key by key.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, dErrors.Wrap(err, dErrors.CodeInvalidConfig, "parse config file")
	}
	return cfg, nil
}

// UnmarshalYAML decodes a consent block over the values already in c. The
// idle key is whole seconds, like OPTIN_IDLE_SECONDS; a duration string such
// as "2m" is accepted too. Category keys are stored lowercase and merged over
// the existing maps key by key.
func (c *Consent) UnmarshalYAML(node *yaml.Node) error {
	type plain Consent
	associated, lists := c.AssociatedCookies, c.FunctionalList
	c.AssociatedCookies, c.FunctionalList = nil, nil
	if err := node.Decode((*plain)(c)); err != nil {
		return err
	}

	var raw struct {
		Idle *yaml.Node `yaml:"idle"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Idle != nil {
		idle, err := parseIdle(raw.Idle)
		if err != nil {
			return err
		}
		c.Idle = idle
	}

	keyed, err := canonicalKeys(c.AssociatedCookies)
	if err != nil {
		return err
	}
	c.AssociatedCookies = mergeKeys(associated, keyed)

	keyedLists, err := canonicalKeys(c.FunctionalList)
	if err != nil {
		return err
	}
	c.FunctionalList = mergeKeys(lists, keyedLists)
	return nil
}

func parseIdle(node *yaml.Node) (time.Duration, error) {
	var secs int
	if err := node.Decode(&secs); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	var text string
	if err := node.Decode(&text); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidConfig, "idle must be a number of seconds")
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidConfig, "idle must be a number of seconds")
	}
	return d, nil
}

// canonicalKeys rewrites category keys to their lowercase form. Unknown keys
// are kept as given for Validate to reject. Two keys naming one category fail.
func canonicalKeys[V any](m map[string]V) (map[string]V, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]V, len(m))
	for name, v := range m {
		key := name
		if category, err := models.ParseCategory(name); err == nil {
			key = category.String()
		}
		if _, dup := out[key]; dup {
			return nil, dErrors.New(dErrors.CodeInvalidConfig, "category "+key+" is configured twice")
		}
		out[key] = v
	}
	return out, nil
}

func mergeKeys[V any](base, over map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Validate rejects configurations the consent components cannot honour.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return dErrors.New(dErrors.CodeInvalidConfig, "server addr is required")
	}
	return c.Consent.Validate()
}

// WithDefaults fills every zero field of c from DefaultConsent. Maps and
// texts are merged key by key, so a caller can override one panel string
// and keep the rest.
func (c Consent) WithDefaults() Consent {
	d := DefaultConsent()
	c.CookieName = or(c.CookieName, d.CookieName)
	if c.ExpiresDays == 0 {
		c.ExpiresDays = d.ExpiresDays
	}
	c.PanelURL = or(c.PanelURL, d.PanelURL)

	if keyed, err := canonicalKeys(c.AssociatedCookies); err == nil {
		c.AssociatedCookies = keyed
	}
	if c.AssociatedCookies == nil {
		c.AssociatedCookies = d.AssociatedCookies
	}
	lists := c.FunctionalList
	if keyed, err := canonicalKeys(lists); err == nil {
		lists = keyed
	}
	c.FunctionalList = mergeKeys(d.FunctionalList, lists)

	t := &c.Text
	t.Title = or(t.Title, d.Text.Title)
	t.Message = or(t.Message, d.Text.Message)
	t.Cancel = or(t.Cancel, d.Text.Cancel)
	t.AcceptAll = or(t.AcceptAll, d.Text.AcceptAll)
	t.RejectAll = or(t.RejectAll, d.Text.RejectAll)
	t.ChangeSettings = or(t.ChangeSettings, d.Text.ChangeSettings)
	t.Save = or(t.Save, d.Text.Save)
	t.LinkText = or(t.LinkText, d.Text.LinkText)
	t.LinkURL = or(t.LinkURL, d.Text.LinkURL)
	t.BlockedHeading = or(t.BlockedHeading, d.Text.BlockedHeading)
	t.BlockedFunctional = or(t.BlockedFunctional, d.Text.BlockedFunctional)
	t.BlockedTargeting = or(t.BlockedTargeting, d.Text.BlockedTargeting)
	t.BlockedFeature = or(t.BlockedFeature, d.Text.BlockedFeature)
	t.BlockedShare = or(t.BlockedShare, d.Text.BlockedShare)
	t.BlockedControl = or(t.BlockedControl, d.Text.BlockedControl)
	return c
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Validate checks the cookie name, expiry and category keys.
func (c Consent) Validate() error {
	if !validCookieName(c.CookieName) {
		return dErrors.New(dErrors.CodeInvalidConfig, fmt.Sprintf("invalid cookie name %q", c.CookieName))
	}
	if c.ExpiresDays < 0 {
		return dErrors.New(dErrors.CodeInvalidConfig, "expires must not be negative")
	}
	if c.Idle < 0 {
		return dErrors.New(dErrors.CodeInvalidConfig, "idle must not be negative")
	}
	for name := range c.AssociatedCookies {
		if err := checkCategoryKey(name); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidConfig, "associated_cookies: "+err.Error())
		}
	}
	for name := range c.FunctionalList {
		if err := checkCategoryKey(name); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidConfig, "functional_list: "+err.Error())
		}
	}
	return nil
}

// checkCategoryKey accepts only the canonical spelling; lookups are exact.
func checkCategoryKey(name string) error {
	category, err := models.ParseCategory(name)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidConfig, "unknown category "+name)
	}
	if category.String() != name {
		return dErrors.New(dErrors.CodeInvalidConfig, fmt.Sprintf("category %q must be written %q", name, category.String()))
	}
	return nil
}

// Associated returns the cookie names registered under category, trimmed and
// without duplicates.
func (c Consent) Associated(category models.Category) []string {
	return pstrings.DedupeAndTrim(c.AssociatedCookies[category.String()])
}

// Features returns the will/will-not list registered under category.
func (c Consent) Features(category models.Category) FeatureList {
	return c.FunctionalList[category.String()]
}

// IdleCookieName is the session cookie that tracks the idle window.
func (c Consent) IdleCookieName() string {
	return c.CookieName + "_IDLE"
}

// validCookieName defers to net/http, which refuses to serialise invalid names.
func validCookieName(name string) bool {
	if name == "" || strings.ContainsAny(name, " ;=,") {
		return false
	}
	return (&http.Cookie{Name: name, Value: "x"}).String() != ""
}
