package main

import (
	"fmt"
	"os"

	"twopass/internal/config"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	fmt.Printf("config=%s\n", cfg.Paths.ConfigPath)
	fmt.Printf("online engine=%s model=%q silence_ms=%d\n", cfg.Online.Engine, cfg.Online.ModelPath, cfg.Online.SilenceMS)
	fmt.Printf("offline engine=%s model=%q threads=%d\n", cfg.Offline.Engine, cfg.Offline.ModelPath, cfg.Offline.Threads)
	fmt.Printf("audio rate=%d block=%d tail=%d\n", cfg.Audio.SampleRate, cfg.BlockSamples(), cfg.TailSamples())
	fmt.Printf("recordings enabled=%v dir=%s full_session=%v\n", cfg.Recordings.Enabled, cfg.Recordings.Dir, cfg.Recordings.FullSession)
	fmt.Printf("hook enabled=%v command=%q args=%v\n", cfg.Hook.Enabled, cfg.Hook.Command, cfg.Hook.Args)
}
