package main

import (
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/sw965/omw/mathx/randx"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "raven",
		Short: "一本道・分岐路・盤面の世界に対して、Box合成とCartesian合成の学習効率を比較する実験群",
	}

	// .envがあれば、フラグの既定値として環境変数を読み込む。
	for _, envFile := range []string{".env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(
		newProductsCmd(),
		newChainsCmd(),
		newThreedCmd(),
		newSixdCmd(),
		newGridCmd(),
		newGeneralCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// 環境変数から整数の既定値を読む。未設定・不正な場合はfallbackを返す。
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envUint64(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// newRngs はワーカー毎のrngを用意する。seedが0の場合は実行毎に
// 異なる乱数列になり、0以外なら同じseedで結果が再現する。
func newRngs(p int, seed uint64) []*rand.Rand {
	if seed == 0 {
		return randx.NewPCGs(p)
	}
	rngs := make([]*rand.Rand, p)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewPCG(seed, uint64(i+1)))
	}
	return rngs
}
