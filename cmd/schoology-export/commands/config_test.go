package commands

import (
	"os"
	"path/filepath"
	"schoology-export/internal/harvest"
	"schoology-export/pkg/configutil"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testResolver(changed []string, env map[string]string) resolver {
	return resolver{
		changed: func(flag string) bool {
			for _, c := range changed {
				if c == flag {
					return true
				}
			}
			return false
		},
		lookupEnv: func(key string) (string, bool) {
			value, ok := env[key]
			return value, ok
		},
	}
}

func TestResolveDefaults(t *testing.T) {
	s, err := resolveSettings(testResolver(nil, nil), flagValues{}, Config{})
	require.NoError(t, err)
	require.Equal(t, "out", s.OutputDir)
	require.Equal(t, harvest.FormatPDF, s.Format)
	require.Equal(t, 0.85, s.MatchThreshold)
	require.Equal(t, 30*time.Second, s.WaitTimeout)
	require.Equal(t, 10*time.Second, s.Browser.ImplicitWait)
	require.True(t, s.Browser.Headless)
	require.Equal(t, harvest.DefaultSite, s.Site)
}

func TestResolvePrecedence(t *testing.T) {
	file := Config{
		Key:        "file-key",
		Secret:     "file-secret",
		Instructor: CredentialsConfig{Email: "file@school.test", Password: "file-password"},
		OutputDir:  "file-out",
		Format:     "html",
		Browser:    BrowserConfig{WaitTimeout: "1m", Headful: true},
	}
	env := map[string]string{
		envKey:             "env-key",
		envSecret:          "",
		envInstructorEmail: "env@school.test",
	}
	flags := flagValues{
		key:         "flag-key",
		outputDir:   "flag-out",
		waitTimeout: 5 * time.Second,
		// not marked as changed, so it does not count
		instructorEmail: "flag@school.test",
	}

	s, err := resolveSettings(testResolver([]string{"key", "output-dir", "wait-timeout"}, env), flags, file)
	require.NoError(t, err)
	require.Equal(t, "flag-key", s.Key)
	require.Equal(t, "file-secret", s.Secret, "empty environment variables are ignored")
	require.Equal(t, "env@school.test", s.Instructor.Email)
	require.Equal(t, "file-password", s.Instructor.Password)
	require.Equal(t, "flag-out", s.OutputDir)
	require.Equal(t, harvest.FormatHTML, s.Format)
	require.Equal(t, 5*time.Second, s.WaitTimeout)
	require.False(t, s.Browser.Headless)
}

func TestResolveInvalid(t *testing.T) {
	_, err := resolveSettings(testResolver(nil, nil), flagValues{}, Config{Format: "docx"})
	require.Error(t, err)

	_, err = resolveSettings(testResolver(nil, nil), flagValues{}, Config{Browser: BrowserConfig{WaitTimeout: "soon"}})
	require.Error(t, err)

	_, err = resolveSettings(testResolver([]string{"match-threshold"}, nil), flagValues{matchThreshold: 1.5}, Config{})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := settings{
		Key:        "key",
		Secret:     "secret",
		Instructor: harvest.Credentials{Email: "teacher@school.test", Password: "password"},
	}
	require.NoError(t, s.validate(needApi))
	require.NoError(t, s.validate(needApi|needInstructor))

	err := s.validate(needApi | needInstructor | needStudent)
	require.ErrorContains(t, err, "student email (--student-email or SCHOOLOGY_STUDENT_EMAIL)")
	require.ErrorContains(t, err, "student password")

	err = settings{}.validate(needApi)
	require.ErrorContains(t, err, "consumer key")
	require.ErrorContains(t, err, "consumer secret")
}

func TestReadConfigFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), defaultConfigPath)
	err := os.WriteFile(name, []byte(`{
		key: "key",
		instructor: { email: "teacher@school.test" },
		browser: { url: "127.0.0.1:9222", implicit_wait: "2s" },
		telemetry: { otlp: { traces: { http_endpoint: "localhost:4318" } } },
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(configutil.LocalPath(name), []byte(`{ instructor: { password: "local" } }`), 0600)
	require.NoError(t, err)

	file, err := configutil.ReadConfig[Config](name)
	require.NoError(t, err)

	s, err := resolveSettings(testResolver(nil, nil), flagValues{}, file)
	require.NoError(t, err)
	require.Equal(t, "key", s.Key)
	require.Equal(t, harvest.Credentials{Email: "teacher@school.test", Password: "local"}, s.Instructor)
	require.Equal(t, "127.0.0.1:9222", s.Browser.RemoteURL)
	require.Equal(t, 2*time.Second, s.Browser.ImplicitWait)
	require.Equal(t, "localhost:4318", s.Telemetry.Otlp.Traces.HttpEndpoint)
}
