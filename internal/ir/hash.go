package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for content hashes. The version suffix allows the encoding
// to change without colliding with older hashes.
const (
	DomainGraph  = "gatesched/graph/v1"
	DomainConfig = "gatesched/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphHash identifies the structure of a circuit: every gate with its
// opcode, types, payload and inputs, in id order. Use lists are derived data
// and are not hashed.
func GraphHash(g Graph) (string, error) {
	gates := make([]any, 0, g.GateCount())
	for _, ref := range g.AllGates() {
		ins := g.GetIns(ref)
		inList := make([]any, len(ins))
		for i, in := range ins {
			if in == NullGate {
				return "", fmt.Errorf("GraphHash: gate %d input %d is unset", ref, i)
			}
			inList[i] = uint32(in)
		}
		typed := g.GetTypedOp(ref)
		gates = append(gates, map[string]any{
			"id":      uint32(ref),
			"op":      g.GetOpCode(ref).String(),
			"machine": g.GetMachineType(ref).String(),
			"type":    g.GetGateType(ref).String(),
			"bits":    strconv.FormatUint(g.GetBitField(ref), 10),
			"name":    g.GetName(ref),
			"ins":     inList,
			"counts": []any{
				g.GetStateCount(ref), g.GetDependCount(ref),
				g.GetNumValueIn(ref), g.GetRootCount(ref),
			},
			"typed": map[string]any{
				"bin":   typed.Bin.String(),
				"un":    typed.Un.String(),
				"left":  typed.Left.String(),
				"right": typed.Right.String(),
			},
		})
	}
	canonical, err := MarshalCanonical(map[string]any{
		"version": IRVersion,
		"gates":   gates,
	})
	if err != nil {
		return "", fmt.Errorf("GraphHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when the circuit is known to be complete.
func MustGraphHash(g Graph) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}

// ContentHash hashes an arbitrary canonical value under the given domain.
func ContentHash(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}
