package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sirupsen/logrus"

	"rubato/internal/library"
	"rubato/internal/player"
	"rubato/internal/playlist"
	"rubato/pkg/models"
)

// runPrompt reads commands until EOF or "quit".
func runPrompt(lib *library.Library, controller *player.Controller, sequencer *playlist.Sequencer, state *player.StateManager, logger *logrus.Logger) {
	rl, err := readline.NewEx(&readline.Config{Prompt: "rubato> "})
	if err != nil {
		logger.WithError(err).Error("Could not open command prompt")
		return
	}
	defer rl.Close()

	fmt.Println("Rubato music player. Type 'help' for commands.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			logger.WithError(err).Error("Prompt read failed")
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			printHelp()

		case "list", "ls":
			printTracks(lib.Current())

		case "play":
			if len(args) != 1 {
				fmt.Println("usage: play NUMBER")
				continue
			}
			n, err := strconv.Atoi(args[0])
			snap := lib.Current()
			if err != nil || n < 1 || n > snap.Len() {
				fmt.Println("no such track")
				continue
			}
			track := snap.At(n - 1)
			if err := controller.Play(track); err != nil {
				fmt.Printf("cannot play %s: %v\n", track.Path, err)
			}

		case "pause":
			controller.Pause()

		case "resume":
			controller.Resume()

		case "stop":
			controller.Stop()

		case "seek":
			if len(args) != 1 {
				fmt.Println("usage: seek SECONDS")
				continue
			}
			seconds, err := strconv.ParseFloat(args[0], 64)
			if err != nil || seconds < 0 {
				fmt.Println("seek position must be a non-negative number of seconds")
				continue
			}
			controller.Seek(seconds)

		case "vol", "volume":
			if len(args) != 1 {
				fmt.Printf("volume: %d\n", controller.Volume())
				continue
			}
			v, err := strconv.Atoi(args[0])
			if err != nil {
				fmt.Println("usage: vol NUMBER (0-100)")
				continue
			}
			controller.SetVolume(v)

		case "loop":
			if len(args) != 1 {
				fmt.Printf("loop: %s\n", sequencer.Mode())
				continue
			}
			mode, err := playlist.ParseMode(args[0])
			if err != nil {
				fmt.Println("usage: loop none|song|list")
				continue
			}
			sequencer.SetMode(mode)

		case "rescan":
			if _, err := lib.Rescan(); err != nil {
				fmt.Printf("rescan failed: %v\n", err)
			}

		case "status":
			printStatus(state.GetState())

		case "quit", "exit":
			return

		default:
			fmt.Printf("unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func printHelp() {
	fmt.Println(`Commands:
  list              Show the library
  play NUMBER       Play a track by its list number
  pause             Pause playback (position holds)
  resume            Resume paused playback
  stop              Stop playback
  seek SECONDS      Jump to a position in the current track
  vol [0-100]       Show or set the volume
  loop [MODE]       Show or set the loop mode (none, song, list)
  rescan            Rescan the music directory
  status            Show what is playing
  quit              Exit`)
}

func printTracks(snap *library.Snapshot) {
	if snap.Len() == 0 {
		fmt.Println("library is empty")
		return
	}
	for i := 0; i < snap.Len(); i++ {
		track := snap.At(i)
		fmt.Printf("%3d. %s - %s (%s)\n", i+1, track.Artist, track.Title, track.DisplayTime())
	}
}

func printStatus(s *player.State) {
	if s.Track == nil {
		fmt.Println("nothing playing")
		return
	}
	verb := "playing"
	if s.IsPaused {
		verb = "paused"
	} else if !s.IsPlaying {
		verb = "stopped"
	}
	fmt.Printf("%s: %s - %s [%s / %s] vol=%d loop=%s\n",
		verb, s.Track.Artist, s.Track.Title,
		models.FormatSeconds(int(s.Position)), models.FormatSeconds(int(s.TotalDuration)),
		s.Volume, s.LoopMode)
}
