package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// OnCallSeed is the YAML file of escalation policies and on-call schedules
type OnCallSeed struct {
	Policies  []models.EscalationPolicy `yaml:"policies"`
	Schedules []models.OnCallSchedule   `yaml:"schedules"`
}

// LoadOnCallSeed 读取值班种子文件
func LoadOnCallSeed(path string) (*OnCallSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseOnCallSeed(raw)
}

// ParseOnCallSeed decodes seed YAML. Unknown fields are rejected.
func ParseOnCallSeed(raw []byte) (*OnCallSeed, error) {
	var seed OnCallSeed
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}
