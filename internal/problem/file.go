package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StaticSource picks from an in-memory problem list.
type StaticSource struct {
	problems []Problem
	pick     func(n int) int
}

func NewStaticSource(problems []Problem) *StaticSource {
	return &StaticSource{problems: freeOnly(problems), pick: rand.IntN}
}

// WithPicker replaces the random index function. Used by tests.
func (s *StaticSource) WithPicker(pick func(n int) int) *StaticSource {
	s.pick = pick
	return s
}

func (s *StaticSource) Random(ctx context.Context) (Problem, error) {
	if err := ctx.Err(); err != nil {
		return Problem{}, err
	}
	if len(s.problems) == 0 {
		return Problem{}, ErrNoProblems
	}
	p := s.problems[s.pick(len(s.problems))]
	p.Hints = append([]string(nil), p.Hints...)
	p.Topics = append([]string(nil), p.Topics...)
	return p, nil
}

func (s *StaticSource) Len() int { return len(s.problems) }

func (s *StaticSource) Close() error { return nil }

// LoadFile reads a problem bank from a .json or .yaml/.yml file.
func LoadFile(path string) ([]Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem bank: %w", err)
	}

	var problems []Problem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &problems)
	default:
		err = json.Unmarshal(data, &problems)
	}
	if err != nil {
		return nil, fmt.Errorf("parse problem bank %s: %w", path, err)
	}
	return problems, nil
}

// NewFileSource loads a problem bank file into a StaticSource.
func NewFileSource(path string) (*StaticSource, error) {
	problems, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	src := NewStaticSource(problems)
	if src.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoProblems)
	}
	return src, nil
}

// Builtin is used when no problem bank is configured.
var Builtin = []Problem{
	{
		Slug:        "middle-of-the-linked-list",
		Title:       "Middle of the Linked List",
		Difficulty:  "Easy",
		Statement:   "Given the head of a singly linked list, return the middle node of the linked list. If there are two middle nodes, return the second middle node.",
		Examples:    "Input: head = [1,2,3,4,5]\nOutput: [3,4,5]\n\nInput: head = [1,2,3,4,5,6]\nOutput: [4,5,6]",
		Constraints: "The number of nodes in the list is in the range [1, 100].\n1 <= Node.val <= 100",
		Hints:       []string{"Use two pointers that move at different speeds."},
		Topics:      []string{"Linked List", "Two Pointers"},
	},
	{
		Slug:        "two-sum",
		Title:       "Two Sum",
		Difficulty:  "Easy",
		Statement:   "Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target.",
		Examples:    "Input: nums = [2,7,11,15], target = 9\nOutput: [0,1]",
		Constraints: "2 <= nums.length <= 10^4\nOnly one valid answer exists.",
		Hints:       []string{"A brute force approach is O(n^2).", "Can a hash map remember what you have seen?"},
		Topics:      []string{"Array", "Hash Table"},
	},
}
