package video

// Output levels of the video channel, signed 16-bit PCM.
const (
	BlankLevel int16 = 0
	BlackLevel int16 = 9830
	WhiteLevel int16 = 32767
)

// LumaToLevel maps a luma byte linearly onto the black..white range.
func LumaToLevel(pixel byte) int16 {
	return BlackLevel + int16(int32(WhiteLevel-BlackLevel)*int32(pixel)/255)
}

// LevelToLuma is the inverse of LumaToLevel, rounding to the nearest byte.
// Levels outside black..white are clamped.
func LevelToLuma(level int16) byte {
	if level <= BlackLevel {
		return 0
	}
	if level >= WhiteLevel {
		return 255
	}
	span := int32(WhiteLevel - BlackLevel)
	return byte((int32(level-BlackLevel)*255 + span/2) / span)
}
