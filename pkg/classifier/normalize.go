package classifier

// halfSaturation is the constant "a" solved from normalize(2) = 0.9:
// 2 / (2 + a) = 0.9  =>  a = 2 * (1 - 0.9) / 0.9.
const halfSaturation = 2 * (1 - 0.9) / 0.9

// normalize maps [0, +inf) monotonically into [0, 1), with normalize(0) = 0
// and normalize(2) = 0.9. It never reaches 1.0.
func normalize(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (x + halfSaturation)
}
