// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads a default options layer from a configuration
// file and the environment.
//
// Files may be YAML, JSON or TOML. Every key may be overridden by an
// environment variable named after the key path, upper-cased, with
// dots replaced by underscores and the prefix "GOTX_" (see
// WithEnvPrefix); for example GOTX_RETRY_LIMIT overrides retry.limit.
// An optional .env file is loaded into the environment first.
//
// A minimal YAML file:
//
//	prefixUrl: https://api.example.com/v1
//	headers:
//	  x-api-key: secret
//	timeout:
//	  request: 5s
//	retry:
//	  limit: 3
//	  statusCodes: [429, 503]
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gogama/gotx/request"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// File is the configuration file schema.
type File struct {
	Method             string            `mapstructure:"method" validate:"omitempty,alpha"`
	PrefixURL          string            `mapstructure:"prefixUrl" validate:"omitempty,url"`
	Headers            map[string]string `mapstructure:"headers"`
	Timeout            Timeout           `mapstructure:"timeout"`
	Retry              Retry             `mapstructure:"retry"`
	FollowRedirect     *bool             `mapstructure:"followRedirect"`
	MaxRedirects       *int              `mapstructure:"maxRedirects" validate:"omitempty,min=0"`
	MethodRewriting    *bool             `mapstructure:"methodRewriting"`
	AllowDowngrade     *bool             `mapstructure:"allowDowngrade"`
	ThrowHTTPErrors    *bool             `mapstructure:"throwHttpErrors"`
	Decompress         *bool             `mapstructure:"decompress"`
	HTTP2              *bool             `mapstructure:"http2"`
	ResponseType       string            `mapstructure:"responseType" validate:"omitempty,oneof=text json buffer"`
	DNSLookupIPVersion string            `mapstructure:"dnsLookupIpVersion" validate:"omitempty,oneof=auto ipv4 ipv6"`
	HTTPS              HTTPS             `mapstructure:"https"`
	Pagination         Pagination        `mapstructure:"pagination"`
}

// Timeout is the timeout section of File.
type Timeout struct {
	Lookup        time.Duration `mapstructure:"lookup" validate:"min=0"`
	Connect       time.Duration `mapstructure:"connect" validate:"min=0"`
	SecureConnect time.Duration `mapstructure:"secureConnect" validate:"min=0"`
	Socket        time.Duration `mapstructure:"socket" validate:"min=0"`
	Send          time.Duration `mapstructure:"send" validate:"min=0"`
	Response      time.Duration `mapstructure:"response" validate:"min=0"`
	Request       time.Duration `mapstructure:"request" validate:"min=0"`
}

// Retry is the retry section of File.
type Retry struct {
	Limit         *int          `mapstructure:"limit" validate:"omitempty,min=0"`
	Methods       []string      `mapstructure:"methods"`
	StatusCodes   []int         `mapstructure:"statusCodes" validate:"dive,min=100,max=599"`
	ErrorCodes    []string      `mapstructure:"errorCodes"`
	MaxRetryAfter time.Duration `mapstructure:"maxRetryAfter" validate:"min=0"`
	BackoffLimit  time.Duration `mapstructure:"backoffLimit" validate:"min=0"`
}

// HTTPS is the https section of File. Certificates and keys are given
// as file paths.
type HTTPS struct {
	CertificateAuthority []string `mapstructure:"certificateAuthority"`
	Certificate          string   `mapstructure:"certificate"`
	Key                  string   `mapstructure:"key"`
	PFX                  string   `mapstructure:"pfx"`
	Passphrase           *string  `mapstructure:"passphrase"`
	RejectUnauthorized   *bool    `mapstructure:"rejectUnauthorized"`
}

// Pagination is the pagination section of File.
type Pagination struct {
	CountLimit    int           `mapstructure:"countLimit" validate:"min=0"`
	RequestLimit  int           `mapstructure:"requestLimit" validate:"min=0"`
	Backoff       time.Duration `mapstructure:"backoff" validate:"min=0"`
	StackAllItems *bool         `mapstructure:"stackAllItems"`
}

// Loader holds the loading settings.
type Loader struct {
	ConfigFile string
	EnvFile    string
	EnvPrefix  string
}

// Option is a functional option for Load.
type Option func(*Loader)

// WithConfigFile sets the configuration file. Without one, only the
// environment is read.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.ConfigFile = path }
}

// WithEnvFile sets a .env file to load into the environment.
func WithEnvFile(path string) Option {
	return func(l *Loader) { l.EnvFile = path }
}

// WithEnvPrefix sets the environment variable prefix. The default is
// "GOTX".
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.EnvPrefix = prefix }
}

var validate = validator.New()

// Load reads the configuration and returns it as an options layer,
// suitable for Instance defaults.
func Load(opts ...Option) (*request.Options, error) {
	f, err := LoadFile(opts...)
	if err != nil {
		return nil, err
	}
	return f.Options()
}

// LoadFile reads the configuration without converting it.
func LoadFile(opts ...Option) (*File, error) {
	l := Loader{EnvPrefix: "GOTX"}
	for _, opt := range opts {
		opt(&l)
	}

	if l.EnvFile != "" {
		if err := godotenv.Load(l.EnvFile); err != nil {
			return nil, fmt.Errorf("gotx/config: loading env file %s: %w", l.EnvFile, err)
		}
	}

	v := viper.New()
	if l.ConfigFile != "" {
		v.SetConfigFile(l.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("gotx/config: reading %s: %w", l.ConfigFile, err)
		}
	}
	v.SetEnvPrefix(l.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys(reflect.TypeOf(File{}), "") {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("gotx/config: binding %s: %w", key, err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("gotx/config: decoding: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return nil, fmt.Errorf("gotx/config: invalid %s: failed %q check", ves[0].Namespace(), ves[0].Tag())
		}
		return nil, fmt.Errorf("gotx/config: %w", err)
	}
	return &f, nil
}

// keys lists the dotted key paths of the struct type t, following
// mapstructure tags. Map-valued fields have no environment form and
// are skipped.
func keys(t reflect.Type, prefix string) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Map {
			continue
		}
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			out = append(out, keys(f.Type, name)...)
			continue
		}
		out = append(out, name)
	}
	return out
}

// Options converts f into an options layer. Certificate and key files
// are read from disk.
func (f *File) Options() (*request.Options, error) {
	o := &request.Options{
		Method:    strings.ToUpper(f.Method),
		PrefixURL: f.PrefixURL,
		Timeout: request.Timeouts{
			Lookup:        f.Timeout.Lookup,
			Connect:       f.Timeout.Connect,
			SecureConnect: f.Timeout.SecureConnect,
			Socket:        f.Timeout.Socket,
			Send:          f.Timeout.Send,
			Response:      f.Timeout.Response,
			Request:       f.Timeout.Request,
		},
		Retry: request.Retry{
			Limit:         f.Retry.Limit,
			Methods:       f.Retry.Methods,
			StatusCodes:   f.Retry.StatusCodes,
			ErrorCodes:    f.Retry.ErrorCodes,
			MaxRetryAfter: f.Retry.MaxRetryAfter,
			BackoffLimit:  f.Retry.BackoffLimit,
		},
		FollowRedirect:     f.FollowRedirect,
		MaxRedirects:       f.MaxRedirects,
		MethodRewriting:    f.MethodRewriting,
		AllowDowngrade:     f.AllowDowngrade,
		ThrowHTTPErrors:    f.ThrowHTTPErrors,
		Decompress:         f.Decompress,
		HTTP2:              f.HTTP2,
		ResponseType:       request.ResponseType(f.ResponseType),
		DNSLookupIPVersion: f.DNSLookupIPVersion,
		Pagination: request.Pagination{
			CountLimit:    f.Pagination.CountLimit,
			RequestLimit:  f.Pagination.RequestLimit,
			Backoff:       f.Pagination.Backoff,
			StackAllItems: f.Pagination.StackAllItems,
		},
	}

	if len(f.Headers) > 0 {
		o.Header = make(http.Header, len(f.Headers))
		for k, v := range f.Headers {
			o.Header.Set(k, v)
		}
	}

	var err error
	for _, path := range f.HTTPS.CertificateAuthority {
		var ca []byte
		if ca, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("gotx/config: reading https.certificateAuthority: %w", err)
		}
		o.HTTPS.CertificateAuthority = append(o.HTTPS.CertificateAuthority, ca)
	}
	if o.HTTPS.Certificate, err = readOptional(f.HTTPS.Certificate); err != nil {
		return nil, fmt.Errorf("gotx/config: reading https.certificate: %w", err)
	}
	if o.HTTPS.Key, err = readOptional(f.HTTPS.Key); err != nil {
		return nil, fmt.Errorf("gotx/config: reading https.key: %w", err)
	}
	if o.HTTPS.PFX, err = readOptional(f.HTTPS.PFX); err != nil {
		return nil, fmt.Errorf("gotx/config: reading https.pfx: %w", err)
	}
	o.HTTPS.Passphrase = f.HTTPS.Passphrase
	o.HTTPS.RejectUnauthorized = f.HTTPS.RejectUnauthorized

	return o, nil
}

func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
