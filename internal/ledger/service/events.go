package service

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/chainsensors/capsules/internal/errors"
	ledgerDomain "github.com/chainsensors/capsules/internal/ledger/domain"
)

const logData = "Program data: "

var eventNames = []string{
	ledgerDomain.EventResealOutput,
	ledgerDomain.EventQualityScore,
	ledgerDomain.EventPurchaseSealed,
}

// DecodeEvent decodes one event payload (discriminator followed by its fields).
// Payloads whose discriminator matches no known event return ErrUnknownEvent.
func DecodeEvent(data []byte) (string, any, error) {
	if len(data) < DiscriminatorSize {
		return "", nil, ledgerDomain.ErrInvalidEventData
	}

	name := ""
	for _, candidate := range eventNames {
		disc := EventDiscriminator(candidate)
		if bytes.Equal(data[:DiscriminatorSize], disc[:]) {
			name = candidate
			break
		}
	}
	if name == "" {
		return "", nil, ledgerDomain.ErrUnknownEvent
	}

	r := newBorshReader(data[DiscriminatorSize:])
	var payload any
	switch name {
	case ledgerDomain.EventResealOutput:
		out := &ledgerDomain.ResealOutput{
			Listing: r.publicKey(),
			Record:  r.publicKey(),
		}
		r.fixed(out.EncryptionKey[:])
		r.fixed(out.Nonce[:])
		for i := range out.Limbs {
			r.fixed(out.Limbs[i][:])
		}
		payload = out
	case ledgerDomain.EventQualityScore:
		out := &ledgerDomain.QualityScoreEvent{}
		r.fixed(out.AccuracyScore[:])
		r.fixed(out.Nonce[:])
		out.ComputationType = r.str()
		payload = out
	case ledgerDomain.EventPurchaseSealed:
		payload = &ledgerDomain.PurchaseSealed{
			Listing:   r.publicKey(),
			Record:    r.publicKey(),
			Buyer:     r.publicKey(),
			CID:       r.str(),
			Authority: r.publicKey(),
			Timestamp: r.i64(),
		}
	}

	if err := r.finish(); err != nil {
		return name, nil, errors.Wrapf(err, "decode %s", name)
	}
	return name, payload, nil
}

// EncodeEvent is the inverse of DecodeEvent. Payload must be one of the event structs.
func EncodeEvent(payload any) ([]byte, error) {
	switch ev := payload.(type) {
	case *ledgerDomain.ResealOutput:
		w := newBorshWriter(EventDiscriminator(ledgerDomain.EventResealOutput)).
			publicKey(ev.Listing).
			publicKey(ev.Record).
			raw(ev.EncryptionKey[:]).
			raw(ev.Nonce[:])
		for i := range ev.Limbs {
			w.raw(ev.Limbs[i][:])
		}
		return w.encoded()
	case *ledgerDomain.QualityScoreEvent:
		return newBorshWriter(EventDiscriminator(ledgerDomain.EventQualityScore)).
			raw(ev.AccuracyScore[:]).
			raw(ev.Nonce[:]).
			str(ev.ComputationType).
			encoded()
	case *ledgerDomain.PurchaseSealed:
		return newBorshWriter(EventDiscriminator(ledgerDomain.EventPurchaseSealed)).
			publicKey(ev.Listing).
			publicKey(ev.Record).
			publicKey(ev.Buyer).
			str(ev.CID).
			publicKey(ev.Authority).
			i64(ev.Timestamp).
			encoded()
	default:
		return nil, ledgerDomain.ErrUnknownEvent
	}
}

// EventLogLine renders payload the way the program emits it.
func EventLogLine(payload any) (string, error) {
	data, err := EncodeEvent(payload)
	if err != nil {
		return "", err
	}
	return logData + base64.StdEncoding.EncodeToString(data), nil
}

// ParseLogs extracts the events emitted by programID from one transaction's log lines.
//
// Data lines are attributed to the innermost program on the invoke stack, so events
// printed by other programs in the same transaction are skipped. Lines with an unknown
// discriminator are ignored; malformed payloads of known events are reported in the
// returned error while the remaining events are still returned.
func ParseLogs(programID ledgerDomain.PublicKey, n ledgerDomain.LogNotification) ([]ledgerDomain.Event, error) {
	if n.Failed {
		return nil, nil
	}

	target := programID.String()
	var (
		stack  []string
		events []ledgerDomain.Event
		errs   []error
	)
	for _, line := range n.Logs {
		switch {
		case strings.HasPrefix(line, logData):
			if len(stack) == 0 || stack[len(stack)-1] != target {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line[len(logData):]))
			if err != nil {
				errs = append(errs, errors.Wrap(ledgerDomain.ErrInvalidEventData, "event is not base64"))
				continue
			}
			name, payload, err := DecodeEvent(raw)
			if errors.Is(err, ledgerDomain.ErrUnknownEvent) {
				continue
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			events = append(events, ledgerDomain.Event{
				Name:      name,
				Signature: n.Signature,
				Slot:      n.Slot,
				Payload:   payload,
			})
		default:
			program, status, ok := programStatus(line)
			if !ok {
				continue
			}
			switch {
			case status == "invoke":
				stack = append(stack, program)
			case (status == "success" || strings.HasPrefix(status, "failed")) && len(stack) > 0:
				stack = stack[:len(stack)-1]
			}
		}
	}
	return events, errors.Join(errs...)
}

// programStatus splits "Program <address> <status> ..." lines. Lines whose second field is
// not an address ("Program log:", "Program data:") are rejected.
func programStatus(line string) (string, string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "Program" {
		return "", "", false
	}
	if _, err := ledgerDomain.ParsePublicKey(fields[1]); err != nil {
		return "", "", false
	}
	return fields[1], strings.TrimSuffix(fields[2], ":"), true
}
