package orchestrator

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ethiscan/orchestrator/internal/types"
)

// validate rejects malformed requests before any quota is spent on them.
func (o *Orchestrator) validate(req *types.AnalysisRequest) error {
	if req.Prompt == "" {
		return errors.New("prompt is required")
	}
	if req.PromptTemplateID == "" || req.PromptVersion == "" {
		return errors.New("prompt_template_id and prompt_version are required")
	}
	if !req.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
	if !req.Lens.Valid() {
		return fmt.Errorf("unknown lens %d", req.Lens)
	}

	if req.Image != nil {
		if req.Image.Base64 == "" || req.Image.MimeType == "" {
			return errors.New("image requires both base64 and mime_type")
		}
		// Decoded size estimate; base64 inflates by 4/3.
		if len(req.Image.Base64)/4*3 > o.opts.MaxImageBytes {
			return fmt.Errorf("image exceeds %d bytes", o.opts.MaxImageBytes)
		}
	}

	for name, text := range map[string]string{
		"focus_item":      req.FocusItem,
		"additional_info": req.AdditionalInfo,
	} {
		if utf8.RuneCountInString(text) > o.opts.MaxTextChars {
			return fmt.Errorf("%s exceeds %d characters", name, o.opts.MaxTextChars)
		}
	}
	return nil
}
