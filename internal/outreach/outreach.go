// Package outreach renders sales messages for classified shop records.
package outreach

import (
	_ "embed"
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/shopscan/internal/config"
	"github.com/sells-group/shopscan/internal/model"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Default placeholder values for records missing a name or city.
const (
	DefaultFallbackName = "your shop"
	DefaultFallbackCity = "your area"
)

// buckets lists every ordering posture a template file must cover.
var buckets = []model.Ordering{model.OrderingNone, model.OrderingThirdParty, model.OrderingDirect}

// Data is the value templates execute against.
type Data struct {
	Name string
	City string
}

// TemplateText is the raw subject, email and SMS copy for one bucket.
type TemplateText struct {
	Subject string `yaml:"subject"`
	Email   string `yaml:"email"`
	SMS     string `yaml:"sms"`
}

type bucket struct {
	subject *template.Template
	email   *template.Template
	sms     *template.Template
}

// Templates is a parsed, validated set of buckets.
type Templates map[model.Ordering]*bucket

// ParseTemplates parses a YAML template file. Every bucket and part must be
// present, and each part must render non-blank against sample data.
func ParseTemplates(data []byte) (Templates, error) {
	var raw map[string]TemplateText
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "outreach: parse templates")
	}

	sample := Data{Name: "Sample Pizza", City: "Boston"}
	out := make(Templates, len(buckets))
	for _, ord := range buckets {
		text, ok := raw[string(ord)]
		if !ok {
			return nil, eris.Errorf("outreach: missing template bucket %q", ord)
		}
		b := &bucket{}
		for _, part := range []struct {
			name string
			src  string
			dst  **template.Template
		}{
			{"subject", text.Subject, &b.subject},
			{"email", text.Email, &b.email},
			{"sms", text.SMS, &b.sms},
		} {
			if strings.TrimSpace(part.src) == "" {
				return nil, eris.Errorf("outreach: template %s.%s is empty", ord, part.name)
			}
			tmpl, err := template.New(string(ord) + "." + part.name).Option("missingkey=error").Parse(part.src)
			if err != nil {
				return nil, eris.Wrapf(err, "outreach: parse template %s.%s", ord, part.name)
			}
			rendered, err := render(tmpl, sample)
			if err != nil {
				return nil, eris.Wrapf(err, "outreach: execute template %s.%s", ord, part.name)
			}
			if rendered == "" {
				return nil, eris.Errorf("outreach: template %s.%s renders blank", ord, part.name)
			}
			*part.dst = tmpl
		}
		out[ord] = b
	}
	return out, nil
}

// DefaultTemplates returns the embedded templates.
func DefaultTemplates() Templates {
	t, err := ParseTemplates(defaultTemplates)
	if err != nil {
		panic(err)
	}
	return t
}

// Generator renders messages. It is safe for concurrent use.
type Generator struct {
	templates    Templates
	defaults     Templates
	fallbackName string
	fallbackCity string
}

// New builds a Generator from config, loading templates_file when set.
func New(cfg config.OutreachConfig) (*Generator, error) {
	g := &Generator{
		defaults:     DefaultTemplates(),
		fallbackName: orDefault(cfg.FallbackName, DefaultFallbackName),
		fallbackCity: orDefault(cfg.FallbackCity, DefaultFallbackCity),
	}
	g.templates = g.defaults

	if cfg.TemplatesFile != "" {
		data, err := os.ReadFile(cfg.TemplatesFile)
		if err != nil {
			return nil, eris.Wrapf(err, "outreach: read templates file %s", cfg.TemplatesFile)
		}
		t, err := ParseTemplates(data)
		if err != nil {
			return nil, err
		}
		g.templates = t
	}
	return g, nil
}

// Generate renders the message for a classified record.
func (g *Generator) Generate(rec *model.ShopRecord) (model.OutreachMessage, error) {
	if !rec.Classified() {
		return model.OutreachMessage{}, eris.Errorf("outreach: record %s is not classified", rec.ShopID)
	}
	b, ok := g.templates[rec.DirectOrdering]
	if !ok {
		return model.OutreachMessage{}, eris.Errorf("outreach: unknown ordering %q for record %s", rec.DirectOrdering, rec.ShopID)
	}
	def := g.defaults[rec.DirectOrdering]

	data := Data{
		Name: orDefault(rec.AccountName, g.fallbackName),
		City: orDefault(rec.BillingCity, g.fallbackCity),
	}
	return model.OutreachMessage{
		ShopID:       rec.ShopID,
		EmailSubject: g.renderPart(rec.ShopID, b.subject, def.subject, data),
		EmailBody:    g.renderPart(rec.ShopID, b.email, def.email, data),
		SmsBody:      g.renderPart(rec.ShopID, b.sms, def.sms, data),
	}, nil
}

// renderPart falls back to the embedded template when the configured one
// fails or renders blank.
func (g *Generator) renderPart(shopID string, tmpl, def *template.Template, data Data) string {
	out, err := render(tmpl, data)
	if err == nil && out != "" {
		return out
	}
	zap.L().Warn("outreach: template fallback",
		zap.String("shop_id", shopID),
		zap.String("template", tmpl.Name()),
		zap.Error(err),
	)
	out, _ = render(def, data)
	return out
}

func render(tmpl *template.Template, data Data) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
