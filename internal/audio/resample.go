package audio

// Resample converts interleaved stereo samples from srcRate to the mix rate
// by linear interpolation. Input at the mix rate is returned unchanged.
func Resample(stereo []float32, srcRate int) []float32 {
	if srcRate == MixRate || len(stereo) < MixChannels {
		return stereo
	}

	frames := len(stereo) / MixChannels
	step := float64(srcRate) / float64(MixRate)
	last := float64(frames - 1)
	out := make([]float32, 0, (int(last/step)+1)*MixChannels)

	for pos := 0.0; pos <= last; pos += step {
		i0 := int(pos)
		i1 := i0 + 1
		if i1 >= frames {
			i1 = i0
		}
		frac := float32(pos - float64(i0))
		b0 := i0 * MixChannels
		b1 := i1 * MixChannels
		l := stereo[b0] + (stereo[b1]-stereo[b0])*frac
		r := stereo[b0+1] + (stereo[b1+1]-stereo[b0+1])*frac
		out = append(out, l, r)
	}
	return out
}
