package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported publisher types.
const (
	TypeHTTP   = "http"
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"
)

const (
	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type fileLayout struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one entry of the publishers file. Exactly one of the
// type-specific blocks is read, selected by Type.
type PublisherConfig struct {
	ID      string                 `json:"id" yaml:"id"`
	Type    string                 `json:"type" yaml:"type"`
	Enabled *bool                  `json:"enabled" yaml:"enabled"`
	HTTP    *HTTPPublisherConfig   `json:"http" yaml:"http"`
	SQS     *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
}

// HTTPPublisherConfig describes a webhook sink.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SQSPublisherConfig describes an SQS queue sink.
type SQSPublisherConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
}

// SNSPublisherConfig describes an SNS topic sink.
type SNSPublisherConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
}

// PubSubPublisherConfig describes a Google Cloud Pub/Sub topic sink.
type PubSubPublisherConfig struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	Topic     string `json:"topic" yaml:"topic"`
}

// sinkBlock is implemented by every type-specific block.
type sinkBlock interface {
	normalize()
	check() error
}

func (c *HTTPPublisherConfig) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = httpDefaultMethod
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = httpDefaultTimeoutSeconds
	}
	c.Headers = cleanHeaders(c.Headers)
}

func (c *HTTPPublisherConfig) check() error {
	return required(TypeHTTP, "url", c.URL)
}

func (c *SQSPublisherConfig) normalize() {
	c.QueueURL = strings.TrimSpace(c.QueueURL)
	c.Region = strings.TrimSpace(c.Region)
}

func (c *SQSPublisherConfig) check() error {
	return required(TypeSQS, "uri", c.QueueURL, "region", c.Region)
}

func (c *SNSPublisherConfig) normalize() {
	c.TopicARN = strings.TrimSpace(c.TopicARN)
	c.Region = strings.TrimSpace(c.Region)
}

func (c *SNSPublisherConfig) check() error {
	return required(TypeSNS, "topic_arn", c.TopicARN, "region", c.Region)
}

func (c *PubSubPublisherConfig) normalize() {
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Topic = strings.TrimSpace(c.Topic)
}

func (c *PubSubPublisherConfig) check() error {
	return required(TypePubSub, "project_id", c.ProjectID, "topic", c.Topic)
}

// required takes name/value pairs and reports the first empty value.
func required(prefix string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%s.%s is required", prefix, pairs[i])
		}
	}
	return nil
}

func cleanHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// block returns the type-specific block selected by Type. known is false
// for types this package has no block for.
func (c *PublisherConfig) block() (blk sinkBlock, known bool) {
	switch c.Type {
	case TypeHTTP:
		if c.HTTP != nil {
			return c.HTTP, true
		}
	case TypeSQS:
		if c.SQS != nil {
			return c.SQS, true
		}
	case TypeSNS:
		if c.SNS != nil {
			return c.SNS, true
		}
	case TypePubSub:
		if c.PubSub != nil {
			return c.PubSub, true
		}
	default:
		return nil, false
	}
	return nil, true
}

func (c *PublisherConfig) normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Enabled == nil {
		on := true
		c.Enabled = &on
	}
	if blk, _ := c.block(); blk != nil {
		blk.normalize()
	}
}

func (c *PublisherConfig) check() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("type is required for publisher %q", c.ID)
	}
	blk, known := c.block()
	if !known {
		// Builders are resolved later; an unregistered type fails there.
		return nil
	}
	if blk == nil {
		return fmt.Errorf("%s config required for publisher %q", c.Type, c.ID)
	}
	if err := blk.check(); err != nil {
		return fmt.Errorf("publisher %q: %w", c.ID, err)
	}
	return nil
}

// EnabledValue reports whether the entry is enabled; entries are on unless
// explicitly disabled.
func (c PublisherConfig) EnabledValue() bool {
	return c.Enabled == nil || *c.Enabled
}

// Config is the validated content of a publishers file. It is read-only
// after LoadConfig returns.
type Config struct {
	entries []PublisherConfig
	byID    map[string]int
}

// LoadConfig reads and validates a publishers file. The extension picks the
// decoder; anything other than .json is read as YAML.
func LoadConfig(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var layout fileLayout
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(raw, &layout)
	} else {
		err = yaml.Unmarshal(raw, &layout)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file %s: %w", filepath.Base(path), err)
	}
	if len(layout.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	cfg := &Config{
		entries: make([]PublisherConfig, 0, len(layout.Publishers)),
		byID:    make(map[string]int, len(layout.Publishers)),
	}
	for i := range layout.Publishers {
		entry := layout.Publishers[i]
		entry.normalize()
		if err := entry.check(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := cfg.byID[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", entry.ID)
		}
		cfg.byID[entry.ID] = len(cfg.entries)
		cfg.entries = append(cfg.entries, entry)
	}
	return cfg, nil
}

// ByID looks up an entry by its id.
func (c *Config) ByID(id string) (PublisherConfig, bool) {
	if c == nil {
		return PublisherConfig{}, false
	}
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return c.entries[i], true
}

// All returns every entry in file order.
func (c *Config) All() []PublisherConfig {
	if c == nil {
		return nil
	}
	return append([]PublisherConfig(nil), c.entries...)
}

// Enabled returns the entries that should be built.
func (c *Config) Enabled() []PublisherConfig {
	if c == nil {
		return nil
	}
	var out []PublisherConfig
	for _, e := range c.entries {
		if e.EnabledValue() {
			out = append(out, e)
		}
	}
	return out
}
