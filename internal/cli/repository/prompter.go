package repository

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// Prompter asks for credentials interactively.
type Prompter struct{}

func (Prompter) GetString(label string, allowEmpty bool) (string, error) {
	prompt := promptui.Prompt{Label: label}
	if !allowEmpty {
		prompt.Validate = func(input string) error {
			if len(strings.TrimSpace(input)) < 1 {
				return errors.New("value should not be empty")
			}
			return nil
		}
	}
	return prompt.Run()
}

func (Prompter) GetPassword(label string) (string, error) {
	prompt := promptui.Prompt{Label: label, Mask: '*'}
	return prompt.Run()
}
