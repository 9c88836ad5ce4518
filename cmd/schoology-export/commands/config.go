package commands

import (
	"errors"
	"fmt"
	"schoology-export/internal/browser"
	"schoology-export/internal/components/telemetry"
	"schoology-export/internal/harvest"
	"schoology-export/internal/schoologyapi"
	"strings"
	"time"
)

const defaultConfigPath = "schoology-export.json5"

const (
	envKey                = "SCHOOLOGY_KEY"
	envSecret             = "SCHOOLOGY_SECRET"
	envInstructorEmail    = "SCHOOLOGY_INSTRUCTOR_EMAIL"
	envInstructorPassword = "SCHOOLOGY_INSTRUCTOR_PASSWORD"
	envStudentEmail       = "SCHOOLOGY_STUDENT_EMAIL"
	envStudentPassword    = "SCHOOLOGY_STUDENT_PASSWORD"
)

type CredentialsConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type BrowserConfig struct {
	Bin     string `json:"bin"`
	Url     string `json:"url"`
	Headful bool   `json:"headful"`
	// durations are written like "30s" or "1m"
	WaitTimeout  string `json:"wait_timeout"`
	ImplicitWait string `json:"implicit_wait"`
}

// Config is the contents of schoology-export.json5, every field is optional.
type Config struct {
	Key            string            `json:"key"`
	Secret         string            `json:"secret"`
	ApiBaseUrl     string            `json:"api_base_url"`
	Site           string            `json:"site"`
	Instructor     CredentialsConfig `json:"instructor"`
	Student        CredentialsConfig `json:"student"`
	OutputDir      string            `json:"output_dir"`
	Format         string            `json:"format"`
	Match          string            `json:"match"`
	MatchThreshold float64           `json:"match_threshold"`
	Browser        BrowserConfig     `json:"browser"`
	Telemetry      telemetry.Config  `json:"telemetry"`
}

// flagValues holds what was parsed from the command line, a value only counts when
// its flag was explicitly set.
type flagValues struct {
	config             string
	verbose            bool
	key                string
	secret             string
	instructorEmail    string
	instructorPassword string
	studentEmail       string
	studentPassword    string
	outputDir          string
	format             string
	match              string
	matchThreshold     float64
	browserBin         string
	browserUrl         string
	headful            bool
	waitTimeout        time.Duration
	implicitWait       time.Duration
}

type settings struct {
	Key            string
	Secret         string
	ApiBaseUrl     string
	Site           string
	Instructor     harvest.Credentials
	Student        harvest.Credentials
	OutputDir      string
	Format         harvest.Format
	Match          string
	MatchThreshold float64
	WaitTimeout    time.Duration
	Browser        browser.Options
	Telemetry      telemetry.Config
}

type resolver struct {
	changed   func(flag string) bool
	lookupEnv func(key string) (string, bool)
}

// str picks the first of: explicitly set flag, non-empty environment variable, config
// file value, default.
func (r resolver) str(flag, flagValue, env, fileValue, def string) string {
	if r.changed(flag) {
		return flagValue
	}
	if env != "" {
		value, ok := r.lookupEnv(env)
		if ok && value != "" {
			return value
		}
	}
	if fileValue != "" {
		return fileValue
	}
	return def
}

func (r resolver) duration(flag string, flagValue time.Duration, fileValue string, def time.Duration) (time.Duration, error) {
	if r.changed(flag) {
		return flagValue, nil
	}
	if fileValue != "" {
		parsed, err := time.ParseDuration(fileValue)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", flag, err)
		}
		return parsed, nil
	}
	return def, nil
}

func resolveSettings(r resolver, flags flagValues, file Config) (settings, error) {
	s := settings{
		Key:        r.str("key", flags.key, envKey, file.Key, ""),
		Secret:     r.str("secret", flags.secret, envSecret, file.Secret, ""),
		ApiBaseUrl: r.str("", "", "", file.ApiBaseUrl, schoologyapi.DefaultBaseUrl),
		Site:       r.str("", "", "", file.Site, harvest.DefaultSite),
		Instructor: harvest.Credentials{
			Email:    r.str("instructor-email", flags.instructorEmail, envInstructorEmail, file.Instructor.Email, ""),
			Password: r.str("instructor-password", flags.instructorPassword, envInstructorPassword, file.Instructor.Password, ""),
		},
		Student: harvest.Credentials{
			Email:    r.str("student-email", flags.studentEmail, envStudentEmail, file.Student.Email, ""),
			Password: r.str("student-password", flags.studentPassword, envStudentPassword, file.Student.Password, ""),
		},
		OutputDir: r.str("output-dir", flags.outputDir, "", file.OutputDir, "out"),
		Match:     r.str("match", flags.match, "", file.Match, ""),
		Telemetry: file.Telemetry,
	}

	format, err := harvest.ParseFormat(r.str("format", flags.format, "", file.Format, string(harvest.FormatPDF)))
	if err != nil {
		return settings{}, err
	}
	s.Format = format

	s.MatchThreshold = schoologyapi.DefaultMatchThreshold
	if file.MatchThreshold > 0 {
		s.MatchThreshold = file.MatchThreshold
	}
	if r.changed("match-threshold") {
		s.MatchThreshold = flags.matchThreshold
	}
	if s.MatchThreshold <= 0 || s.MatchThreshold > 1 {
		return settings{}, fmt.Errorf("match threshold must be in (0, 1], got %v", s.MatchThreshold)
	}

	s.WaitTimeout, err = r.duration("wait-timeout", flags.waitTimeout, file.Browser.WaitTimeout, 30*time.Second)
	if err != nil {
		return settings{}, err
	}
	implicitWait, err := r.duration("implicit-wait", flags.implicitWait, file.Browser.ImplicitWait, 10*time.Second)
	if err != nil {
		return settings{}, err
	}

	headful := file.Browser.Headful
	if r.changed("headful") {
		headful = flags.headful
	}
	s.Browser = browser.Options{
		Headless:     !headful,
		Bin:          r.str("browser-bin", flags.browserBin, "", file.Browser.Bin, ""),
		RemoteURL:    r.str("browser-url", flags.browserUrl, "", file.Browser.Url, ""),
		ImplicitWait: implicitWait,
	}

	return s, nil
}

type requirement int

const (
	needApi requirement = 1 << iota
	needInstructor
	needStudent
)

// validate reports every missing value a command needs, before anything touches the
// network or the browser.
func (s settings) validate(needs requirement) error {
	var missing []string
	check := func(value, name, flag, env string) {
		if value == "" {
			missing = append(missing, fmt.Sprintf("%s (--%s or %s)", name, flag, env))
		}
	}
	if needs&needApi != 0 {
		check(s.Key, "consumer key", "key", envKey)
		check(s.Secret, "consumer secret", "secret", envSecret)
	}
	if needs&needInstructor != 0 {
		check(s.Instructor.Email, "instructor email", "instructor-email", envInstructorEmail)
		check(s.Instructor.Password, "instructor password", "instructor-password", envInstructorPassword)
	}
	if needs&needStudent != 0 {
		check(s.Student.Email, "student email", "student-email", envStudentEmail)
		check(s.Student.Password, "student password", "student-password", envStudentPassword)
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}
