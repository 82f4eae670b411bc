package types

import (
	"encoding/json"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/crypto/field"
)

func TestVoterIDJSON(t *testing.T) {
	c := qt.New(t)

	testCases := []struct {
		name string
		in   string
		want field.Element
	}{
		{name: "number", in: `42`, want: 42},
		{name: "decimal string", in: `"42"`, want: 42},
		{name: "hex string", in: `"0x2a"`, want: 42},
		{name: "modulus wraps", in: `"4194304001"`, want: 0},
		{name: "above modulus", in: `4194304003`, want: 2},
	}
	for _, tc := range testCases {
		c.Run(tc.name, func(c *qt.C) {
			var id VoterID
			c.Assert(json.Unmarshal([]byte(tc.in), &id), qt.IsNil)
			c.Assert(id.Element(), qt.Equals, tc.want)
		})
	}

	var id VoterID
	c.Assert(json.Unmarshal([]byte(`"abc"`), &id), qt.IsNotNil)
	c.Assert(json.Unmarshal([]byte(`-1`), &id), qt.IsNotNil)
	c.Assert(json.Unmarshal([]byte(`1.5`), &id), qt.IsNotNil)
	c.Assert(json.Unmarshal([]byte(`"0x`+strings.Repeat("f", 65)+`"`), &id), qt.IsNotNil)

	out, err := json.Marshal(NewVoterID(123456))
	c.Assert(err, qt.IsNil)
	c.Assert(string(out), qt.Equals, `"123456"`)
}

func TestDigestText(t *testing.T) {
	c := qt.New(t)

	var d Digest
	d[0], d[31] = 0xab, 0x01
	text, err := d.MarshalText()
	c.Assert(err, qt.IsNil)
	c.Assert(string(text), qt.Equals, "0xab"+strings.Repeat("0", 60)+"01")

	var dec Digest
	c.Assert(dec.UnmarshalText(text), qt.IsNil)
	c.Assert(dec, qt.Equals, d)
	c.Assert(dec.Hash().Bytes(), qt.DeepEquals, d.Bytes())

	_, err = HexToDigest("0x1234")
	c.Assert(err, qt.ErrorMatches, "invalid digest length.*")
	c.Assert(Digest{}.IsZero(), qt.IsTrue)
}

func TestCandidateIndexJSON(t *testing.T) {
	c := qt.New(t)

	var req struct {
		Index CandidateIndex `json:"candidateIndex"`
	}
	c.Assert(json.Unmarshal([]byte(`{"candidateIndex":"2"}`), &req), qt.IsNil)
	c.Assert(req.Index.Int(), qt.Equals, 2)
	c.Assert(json.Unmarshal([]byte(`{"candidateIndex":1}`), &req), qt.IsNil)
	c.Assert(req.Index.Int(), qt.Equals, 1)
	c.Assert(json.Unmarshal([]byte(`{"candidateIndex":"one"}`), &req), qt.IsNotNil)
}
