package sat

// lubyGen generates the Luby restart sequence 1 1 2 1 1 2 4 1 1 2 1 1 2 4 8...
// The solver multiplies each term by Options.RestartBase to obtain the number
// of conflicts allowed before the next restart.
type lubyGen struct {
	exp   uint
	turns uint
}

// Next returns the next term of the sequence.
func (lg *lubyGen) Next() int64 {
	res := int64(1) << lg.exp
	if uint(res)&lg.turns == 0 {
		lg.exp = 0
		lg.turns++
	} else {
		lg.exp++
	}
	return res
}
