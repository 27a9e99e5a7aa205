package precursor

import (
	"github.com/ChrisMcGann/pepmass/pkg/core"
	"github.com/spaolacci/murmur3"
)

// hash64 returns the first 64 bits of MurmurHash3 x64_128 as a signed value.
func hash64(s string, seed uint32) int64 {
	h1, _ := murmur3.Sum128WithSeed([]byte(s), seed)
	return int64(h1)
}

// HashModSeq hashes a modified sequence. The sequence, the semicolon-joined
// mods and the semicolon-joined sites are hashed separately and summed with
// int64 wraparound.
func HashModSeq(sequence, mods, sites string, seed uint32) int64 {
	return hash64(sequence, seed) + hash64(mods, seed) + hash64(sites, seed)
}

// HashModSeqCharge adds the charge to the modified-sequence hash.
func HashModSeqCharge(sequence, mods, sites string, charge int, seed uint32) int64 {
	return HashModSeq(sequence, mods, sites, seed) + int64(charge)
}

// HashPrecursorTable fills mod_seq_hash for every row and, when the table
// has charges, mod_seq_charge_hash.
func HashPrecursorTable(t *core.PrecursorTable, seed uint32) {
	withCharge := t.Has(core.ColCharge)
	for i := range t.Rows {
		p := &t.Rows[i]
		p.ModSeqHash = HashModSeq(p.Sequence, p.ModsText(), p.SitesText(), seed)
		if withCharge {
			p.ModSeqChargeHash = p.ModSeqHash + int64(p.Charge)
		}
	}
	t.Set(core.ColModSeqHash)
	if withCharge {
		t.Set(core.ColModSeqChargeHash)
	}
}
