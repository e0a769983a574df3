package video

// barLuma are the luma values of the SMPTE bars, brightest first.
var barLuma = [7]byte{192, 170, 135, 113, 79, 57, 22}

// FillGreyBars paints seven vertical bars matching the luma of the SMPTE
// colour bars. The last bar absorbs any remainder of the width.
func FillGreyBars(fb *FrameBuffer) error {
	cols := fb.Cols()
	barWidth := cols / len(barLuma)
	if barWidth == 0 {
		barWidth = 1
	}
	row := make([]byte, cols)
	for x := range row {
		barIdx := x / barWidth
		if barIdx >= len(barLuma) {
			barIdx = len(barLuma) - 1
		}
		row[x] = barLuma[barIdx]
	}
	for y := 0; y < fb.Rows(); y++ {
		if err := fb.SetRow(y, row); err != nil {
			return err
		}
	}
	return nil
}
