package authoring

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeYAML reads a quiz definition. Unknown keys are rejected.
//
//	title: Capitals
//	has_timer: true
//	questions:
//	  - type: single_choice
//	    text: Capital of Peru
//	    options: [{text: Lima}, {text: Cusco}]
//	    correct: ["0"]
func DecodeYAML(r io.Reader) (QuizInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var in QuizInput
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return QuizInput{}, fmt.Errorf("decode quiz: empty document")
		}
		return QuizInput{}, fmt.Errorf("decode quiz: %w", err)
	}
	return in, nil
}
