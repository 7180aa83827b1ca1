// Package ruleset читает YAML-файл с правилами классификации и политиками отделов.
//
// Пример:
//
//	rules:
//	  - type: black
//	    match: process
//	    value: steam.exe
//	  - type: white
//	    match: title
//	    value: jira
//	departments:
//	  - id: 1
//	    target: 8h
//	    max_break: 1h
//	    max_break_count: 3
//	    thresholds:
//	      - status: fish
//	        max: 30m
//	        trigger: require_reason
package ruleset

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File - содержимое файла правил
type File struct {
	Rules       []Rule       `yaml:"rules"`
	Departments []Department `yaml:"departments"`
}

// Rule - правило классификации окна
type Rule struct {
	Type    string `yaml:"type"`  // black | white
	Match   string `yaml:"match"` // process | title
	Value   string `yaml:"value"`
	Enabled *bool  `yaml:"enabled"`
	Note    string `yaml:"note"`
}

// IsEnabled - правило без поля enabled включено
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Department - правило посещаемости отдела
type Department struct {
	ID             uint        `yaml:"id"`
	Enabled        *bool       `yaml:"enabled"`
	Target         Duration    `yaml:"target"`
	MaxBreak       Duration    `yaml:"max_break"`
	MaxBreakCount  int64       `yaml:"max_break_count"`
	MaxBreakSingle Duration    `yaml:"max_break_single"`
	Thresholds     []Threshold `yaml:"thresholds"`
}

func (d Department) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Threshold - порог суммарной длительности статуса
type Threshold struct {
	Status  string   `yaml:"status"`
	Min     Duration `yaml:"min"`
	Max     Duration `yaml:"max"`
	Trigger string   `yaml:"trigger"` // show_only | require_reason
	Enabled *bool    `yaml:"enabled"`
}

func (t Threshold) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Duration принимает "8h", "30m" или число секунд
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	value := strings.TrimSpace(node.Value)
	if value == "" {
		*d = 0
		return nil
	}

	var seconds int64
	if err := node.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("строка %d: некорректная длительность %q", node.Line, value)
	}
	*d = Duration(parsed)
	return nil
}

// Seconds возвращает длительность в целых секундах
func (d Duration) Seconds() int64 {
	return int64(time.Duration(d) / time.Second)
}

// Parse разбирает и проверяет содержимое файла
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Load читает файл правил с диска
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return Parse(data)
}

// Validate проверяет значения перечислений и границы порогов
func (f *File) Validate() error {
	for i, rule := range f.Rules {
		switch strings.ToLower(rule.Type) {
		case "black", "white":
		default:
			return fmt.Errorf("rules[%d]: неизвестный тип %q", i, rule.Type)
		}
		switch strings.ToLower(rule.Match) {
		case "process", "title":
		default:
			return fmt.Errorf("rules[%d]: неизвестный режим %q", i, rule.Match)
		}
		if strings.TrimSpace(rule.Value) == "" {
			return fmt.Errorf("rules[%d]: пустое значение", i)
		}
	}

	seen := make(map[uint]bool, len(f.Departments))
	for i, dept := range f.Departments {
		if dept.ID == 0 {
			return fmt.Errorf("departments[%d]: не указан id", i)
		}
		if seen[dept.ID] {
			return fmt.Errorf("departments[%d]: отдел %d указан дважды", i, dept.ID)
		}
		seen[dept.ID] = true

		if dept.Target < 0 || dept.MaxBreak < 0 || dept.MaxBreakSingle < 0 || dept.MaxBreakCount < 0 {
			return fmt.Errorf("departments[%d]: отрицательный лимит", i)
		}
		for j, t := range dept.Thresholds {
			if strings.TrimSpace(t.Status) == "" {
				return fmt.Errorf("departments[%d].thresholds[%d]: не указан статус", i, j)
			}
			if t.Min < 0 || t.Max < 0 || (t.Max > 0 && t.Min > t.Max) {
				return fmt.Errorf("departments[%d].thresholds[%d]: некорректные границы", i, j)
			}
			switch t.Trigger {
			case "", "show_only", "require_reason":
			default:
				return fmt.Errorf("departments[%d].thresholds[%d]: неизвестное действие %q", i, j, t.Trigger)
			}
		}
	}
	return nil
}
