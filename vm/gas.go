package vm

import "github.com/vaporyorg/util-contracts/simerrors"

type gasMeter struct {
	left uint64
}

func (g *gasMeter) consume(n uint64) error {
	if g.left < n {
		g.left = 0
		return simerrors.ErrOutOfGas
	}
	g.left -= n
	return nil
}

func (g *gasMeter) refund(n uint64) {
	g.left += n
}

// allButOne64th is the most gas a frame may forward to a callee.
func allButOne64th(gas uint64) uint64 {
	return gas - gas/64
}
