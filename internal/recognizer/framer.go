package recognizer

// framingInitialFraction and framingInitialFrameCount are the adaptive
// early-chunks calibration points named in spec §9: the upstream service
// terminates sessions that see no audio within ~20s of start, so the
// first framingInitialFrameCount frames after (re)connect are shortened
// to get audio flowing sooner.
const (
	framingSteadyFraction  = 0.2
	framingInitialFraction = 0.15
	framingInitialFrameCount = 5
)

// framer accumulates raw PCM samples and drains them in frame-sized
// slices, using a shorter target size for the first few frames of a
// freshly (re)opened session, per spec §4.4.
type framer struct {
	sampleRate int
	frameCount int
	acc        []int16
}

func newFramer(sampleRate int) *framer {
	return &framer{sampleRate: sampleRate}
}

// targetSize returns the current frame-size target in samples.
func (f *framer) targetSize() int {
	fraction := framingSteadyFraction
	if f.frameCount < framingInitialFrameCount {
		fraction = framingInitialFraction
	}
	return int(fraction * float64(f.sampleRate))
}

// push appends samples to the accumulator and drains as many
// frame-sized slices as are available, in order.
func (f *framer) push(samples []int16) [][]int16 {
	f.acc = append(f.acc, samples...)

	var frames [][]int16
	for {
		target := f.targetSize()
		if target <= 0 || len(f.acc) < target {
			break
		}
		frame := append([]int16(nil), f.acc[:target]...)
		f.acc = f.acc[target:]
		frames = append(frames, frame)
		f.frameCount++
	}
	return frames
}

// flush drains any remaining partial accumulator as a short frame. The
// send loop calls it both when no data arrives within the receive timeout
// and when the session ends; it does not count against frameCount.
func (f *framer) flush() []int16 {
	if len(f.acc) == 0 {
		return nil
	}
	out := f.acc
	f.acc = nil
	return out
}

// reset clears accumulated state and the early-chunks counter. Nothing in
// the package calls it: each Reconnect starts its send loop with a fresh
// framer from newFramer.
func (f *framer) reset() {
	f.acc = nil
	f.frameCount = 0
}
