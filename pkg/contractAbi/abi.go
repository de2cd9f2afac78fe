package contractAbi

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

// UnmarshalJsonToAbi unmarshals a JSON ABI string into an abi.ABI struct.
// It handles certain common unmarshaling errors that can be safely ignored,
// such as "only single receive is allowed" and "only single fallback is allowed".
// Returns the parsed ABI and any error encountered during parsing.
func UnmarshalJsonToAbi(json string, l *zap.Logger) (*abi.ABI, error) {
	a := &abi.ABI{}

	err := a.UnmarshalJSON([]byte(json))

	if err != nil {
		foundMatch := false
		// patterns that we're fine to ignore and not treat as an error
		patterns := []*regexp.Regexp{
			regexp.MustCompile(`only single receive is allowed`),
			regexp.MustCompile(`only single fallback is allowed`),
		}

		for _, pattern := range patterns {
			if pattern.MatchString(err.Error()) {
				foundMatch = true
				break
			}
		}

		// If the error isnt one that we can ignore, return it
		if !foundMatch {
			l.Sugar().Warnw("Error unmarshaling abi json", zap.Error(err))
			return nil, err
		}
	}

	return a, nil
}

// Artifact is the subset of a forge build artifact (out/<File>.sol/<Contract>.json) the
// sidecar reads.
type Artifact struct {
	Abi      json.RawMessage `json:"abi"`
	Metadata struct {
		Compiler struct {
			Version string `json:"version"`
		} `json:"compiler"`
	} `json:"metadata"`
}

// CompilerVersion returns the solc version as a semver string ("v0.8.19"), dropping the
// "+commit..." build suffix.
func (a *Artifact) CompilerVersion() string {
	v := a.Metadata.Compiler.Version
	if v == "" {
		return ""
	}
	if i := strings.Index(v, "+"); i >= 0 {
		v = v[:i]
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// ParseArtifact decodes an artifact and its ABI. When minVersion is set the artifact must
// have been compiled with at least that compiler version.
func ParseArtifact(contents []byte, minVersion string, l *zap.Logger) (*abi.ABI, error) {
	artifact := &Artifact{}
	if err := json.Unmarshal(contents, artifact); err != nil {
		return nil, errors.Wrap(err, "failed to decode contract artifact")
	}
	if len(artifact.Abi) == 0 {
		return nil, errors.New("contract artifact has no abi")
	}

	if minVersion != "" {
		if err := checkCompilerVersion(artifact, minVersion); err != nil {
			return nil, err
		}
	}

	return UnmarshalJsonToAbi(string(artifact.Abi), l)
}

// LoadArtifact reads and parses the artifact at path.
func LoadArtifact(path string, minVersion string, l *zap.Logger) (*abi.ABI, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read contract artifact '%s'", path))
	}
	a, err := ParseArtifact(contents, minVersion, l)
	if err != nil {
		return nil, err
	}
	l.Sugar().Infow("Loaded contract abi",
		zap.String("path", path),
		zap.Int("events", len(a.Events)),
		zap.Int("methods", len(a.Methods)),
	)
	return a, nil
}

func checkCompilerVersion(artifact *Artifact, minVersion string) error {
	if !strings.HasPrefix(minVersion, "v") {
		minVersion = "v" + minVersion
	}
	if !semver.IsValid(minVersion) {
		return fmt.Errorf("invalid minimum abi version '%s'", minVersion)
	}
	actual := artifact.CompilerVersion()
	if !semver.IsValid(actual) {
		return fmt.Errorf("contract artifact has no usable compiler version (got '%s')", artifact.Metadata.Compiler.Version)
	}
	if semver.Compare(actual, minVersion) < 0 {
		return fmt.Errorf("contract artifact compiled with %s, need at least %s", actual, minVersion)
	}
	return nil
}
