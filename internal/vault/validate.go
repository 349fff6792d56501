package vault

import (
	"encoding/base64"
	"strings"
)

// Validation rule names, reported inside ValidationError.
const (
	RuleDuplicateID      = "duplicate-id"
	RuleDuplicateLabel   = "duplicate-label"
	RuleDanglingIdentity = "dangling-identity"
	RuleKeyArmor         = "key-armor"
	RuleRequiredField    = "required-field"
	RulePortRange        = "port-range"
)

// Validate runs the full rule set over a payload. It runs after every Open
// and the same per-entity rules gate every mutation.
func Validate(d *VaultData) error {
	hostIDs := make(map[string]bool, len(d.Hosts))
	labels := make(map[string]bool, len(d.Hosts))
	identityIDs := make(map[string]bool, len(d.Identities))

	for i := range d.Identities {
		id := &d.Identities[i]
		if identityIDs[id.ID] {
			return violation(RuleDuplicateID, "identity id %q", id.ID)
		}
		identityIDs[id.ID] = true
		if err := validateIdentity(id); err != nil {
			return err
		}
	}

	for i := range d.Hosts {
		h := &d.Hosts[i]
		if hostIDs[h.ID] {
			return violation(RuleDuplicateID, "host id %q", h.ID)
		}
		hostIDs[h.ID] = true
		if labels[h.Label] {
			return violation(RuleDuplicateLabel, "host label %q", h.Label)
		}
		labels[h.Label] = true
		if err := validateHost(h); err != nil {
			return err
		}
		if h.IdentityID != "" && !identityIDs[h.IdentityID] {
			return violation(RuleDanglingIdentity, "host %q references identity %q", h.ID, h.IdentityID)
		}
	}

	snippetIDs := make(map[string]bool, len(d.Snippets))
	for i := range d.Snippets {
		s := &d.Snippets[i]
		if snippetIDs[s.ID] {
			return violation(RuleDuplicateID, "snippet id %q", s.ID)
		}
		snippetIDs[s.ID] = true
		if err := validateSnippet(s); err != nil {
			return err
		}
	}
	return nil
}

func validateHost(h *Host) error {
	switch {
	case h.ID == "":
		return violation(RuleRequiredField, "host id")
	case h.Label == "":
		return violation(RuleRequiredField, "host %q: label", h.ID)
	case h.Hostname == "":
		return violation(RuleRequiredField, "host %q: hostname", h.ID)
	case h.Username == "":
		return violation(RuleRequiredField, "host %q: username", h.ID)
	}
	if h.Port < 1 || h.Port > 65535 {
		return violation(RulePortRange, "host %q: port %d", h.ID, h.Port)
	}
	return nil
}

func validateIdentity(id *Identity) error {
	switch {
	case id.ID == "":
		return violation(RuleRequiredField, "identity id")
	case id.Name == "":
		return violation(RuleRequiredField, "identity %q: name", id.ID)
	case id.KeyType == "":
		return violation(RuleRequiredField, "identity %q: type", id.ID)
	}
	if err := CheckArmoredKey(id.PrivateKey); err != nil {
		return violation(RuleKeyArmor, "identity %q: %v", id.ID, err)
	}
	return nil
}

func validateSnippet(s *Snippet) error {
	switch {
	case s.ID == "":
		return violation(RuleRequiredField, "snippet id")
	case s.Title == "":
		return violation(RuleRequiredField, "snippet %q: title", s.ID)
	case s.Content == "":
		return violation(RuleRequiredField, "snippet %q: content", s.ID)
	}
	return nil
}

// CheckArmoredKey verifies the BEGIN/END-delimited shape of private key
// material: a BEGIN marker containing "PRIVATE KEY", a matching END marker,
// and a base64 body decoding to at least 16 bytes. It does not parse the
// key itself.
func CheckArmoredKey(key string) error {
	lines := strings.Split(strings.TrimSpace(key), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	if len(lines) < 3 {
		return errString("too short for an armored key")
	}

	first, last := lines[0], lines[len(lines)-1]
	if !strings.HasPrefix(first, "-----BEGIN ") || !strings.HasSuffix(first, "-----") {
		return errString("missing BEGIN marker")
	}
	label := strings.TrimSuffix(strings.TrimPrefix(first, "-----BEGIN "), "-----")
	if !strings.Contains(label, "PRIVATE KEY") {
		return errString("BEGIN marker is not a private key")
	}
	if last != "-----END "+label+"-----" {
		return errString("END marker does not match BEGIN")
	}

	body := strings.Join(lines[1:len(lines)-1], "")
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return errString("body is not valid base64")
	}
	if len(raw) < 16 {
		return errString("decoded body too short")
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }
