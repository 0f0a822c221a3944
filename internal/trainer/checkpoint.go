package trainer

import "fmt"

// CheckpointName renders the fixed checkpoint naming scheme:
// model_e{epoch}_gap{k}-{score}.pth, score to three decimals.
func CheckpointName(epoch, gapK int, score float64) string {
	return fmt.Sprintf("model_e%d_gap%d-%.3f.pth", epoch, gapK, score)
}
