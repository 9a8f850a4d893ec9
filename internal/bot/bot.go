// Package bot implements the Rias demo bot: a prefix-command front end that
// drives a rias cluster from Discord text channels.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/rias/pkg/lavalink"
	"github.com/MrWong99/rias/pkg/rias"
)

// commandTimeout bounds the node round-trips behind one chat command.
const commandTimeout = 15 * time.Second

// Bot dispatches prefix commands to the cluster.
type Bot struct {
	session *discordgo.Session
	cluster *rias.Rias
	prefix  string
}

// New wires a command handler over session and cluster. prefix defaults
// to "!".
func New(session *discordgo.Session, cluster *rias.Rias, prefix string) *Bot {
	if prefix == "" {
		prefix = "!"
	}
	return &Bot{session: session, cluster: cluster, prefix: prefix}
}

// Register subscribes the message handler. The returned function removes it.
func (b *Bot) Register() (remove func()) {
	return b.session.AddHandler(b.handleMessage)
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply, err := b.dispatch(ctx, m, cmd, args)
	if err != nil {
		slog.Warn("bot: command failed", "command", cmd, "guild", m.GuildID, "error", err)
		reply = "Error: " + userMessage(err)
	}
	if reply != "" {
		if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
			slog.Warn("bot: reply failed", "channel", m.ChannelID, "error", err)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, m *discordgo.MessageCreate, cmd string, args []string) (string, error) {
	switch cmd {
	case "join":
		return b.cmdJoin(m)
	case "play", "p":
		return b.cmdPlay(ctx, m, strings.Join(args, " "))
	case "skip", "next":
		return b.cmdSkip(ctx, m.GuildID)
	case "pause":
		return b.cmdPause(ctx, m.GuildID, true)
	case "resume":
		return b.cmdPause(ctx, m.GuildID, false)
	case "stop":
		return b.cmdStop(ctx, m.GuildID)
	case "seek":
		return b.cmdSeek(ctx, m.GuildID, args)
	case "volume", "vol":
		return b.cmdVolume(ctx, m.GuildID, args)
	case "loop":
		return b.cmdLoop(m.GuildID, args)
	case "shuffle":
		return b.cmdShuffle(m.GuildID, false)
	case "smartshuffle":
		return b.cmdShuffle(m.GuildID, true)
	case "queue", "q":
		return b.cmdQueue(m.GuildID)
	case "np", "nowplaying":
		return b.cmdNowPlaying(m.GuildID)
	case "filter":
		return b.cmdFilter(ctx, m.GuildID, args)
	case "leave", "disconnect":
		return b.cmdLeave(ctx, m.GuildID)
	}
	return "", nil
}

// player returns the existing player for the guild, without creating one.
func (b *Bot) player(guildID string) (*rias.Player, error) {
	p := b.cluster.Get(guildID)
	if p == nil {
		return nil, rias.ErrPlayerNotFound
	}
	return p, nil
}

func (b *Bot) cmdJoin(m *discordgo.MessageCreate) (string, error) {
	vs, err := b.session.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "Join a voice channel first.", nil
	}
	p, err := b.cluster.Create(m.GuildID, "")
	if err != nil {
		return "", err
	}
	if err := p.Connect(vs.ChannelID); err != nil {
		return "", err
	}
	return "Joining <#" + vs.ChannelID + ">.", nil
}

func (b *Bot) cmdPlay(ctx context.Context, m *discordgo.MessageCreate, query string) (string, error) {
	if query == "" {
		return "Usage: " + b.prefix + "play <url or search terms>", nil
	}
	p, err := b.cluster.Create(m.GuildID, "")
	if err != nil {
		return "", err
	}
	if p.VoiceChannel() == "" {
		if reply, err := b.cmdJoin(m); err != nil || reply == "Join a voice channel first." {
			return reply, err
		}
	}

	result, err := b.cluster.LoadSearch(ctx, query)
	if err != nil {
		return "", err
	}

	switch result.LoadType {
	case lavalink.LoadTypeEmpty:
		return "No matches for that query.", nil

	case lavalink.LoadTypePlaylist:
		pl, ok := result.Data.(lavalink.Playlist)
		if !ok || len(pl.Tracks) == 0 {
			return "No matches for that query.", nil
		}
		tracks := make([]*lavalink.Track, 0, len(pl.Tracks))
		for i := range pl.Tracks {
			tracks = append(tracks, &pl.Tracks[i])
		}
		if p.Playing() {
			p.AddTracks(tracks...)
			return fmt.Sprintf("Queued playlist **%s** (%d tracks).", pl.Info.Name, len(tracks)), nil
		}
		first := tracks[0]
		p.AddTracks(tracks[1:]...)
		if err := p.Play(ctx, first); err != nil {
			return "", err
		}
		return fmt.Sprintf("Playing playlist **%s** (%d tracks).", pl.Info.Name, len(tracks)), nil

	default:
		tracks := result.Tracks()
		if len(tracks) == 0 {
			return "No matches for that query.", nil
		}
		track := &tracks[0]
		if p.Playing() {
			p.AddTrack(track)
			return fmt.Sprintf("Queued **%s** by %s.", track.Info.Title, track.Info.Author), nil
		}
		if err := p.Play(ctx, track); err != nil {
			return "", err
		}
		return fmt.Sprintf("Playing **%s** by %s.", track.Info.Title, track.Info.Author), nil
	}
}

func (b *Bot) cmdSkip(ctx context.Context, guildID string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	advanced, err := p.Skip(ctx)
	if err != nil {
		return "", err
	}
	if !advanced {
		return "Queue is empty; stopped.", nil
	}
	if t := p.Track(); t != nil {
		return fmt.Sprintf("Now playing **%s**.", t.Info.Title), nil
	}
	return "Skipped.", nil
}

func (b *Bot) cmdPause(ctx context.Context, guildID string, paused bool) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if err := p.Pause(ctx, paused); err != nil {
		return "", err
	}
	if paused {
		return "Paused.", nil
	}
	return "Resumed.", nil
}

func (b *Bot) cmdStop(ctx context.Context, guildID string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	p.ClearQueue()
	if err := p.Stop(ctx); err != nil {
		return "", err
	}
	return "Stopped and cleared the queue.", nil
}

func (b *Bot) cmdSeek(ctx context.Context, guildID string, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: " + b.prefix + "seek <seconds>", nil
	}
	secs, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "Usage: " + b.prefix + "seek <seconds>", nil
	}
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if err := p.Seek(ctx, secs*1000); err != nil {
		return "", err
	}
	return fmt.Sprintf("Seeked to %ds.", secs), nil
}

func (b *Bot) cmdVolume(ctx context.Context, guildID string, args []string) (string, error) {
	if len(args) != 1 {
		return "Usage: " + b.prefix + "volume <0-1000>", nil
	}
	vol, err := strconv.Atoi(args[0])
	if err != nil {
		return "Usage: " + b.prefix + "volume <0-1000>", nil
	}
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if err := p.SetVolume(ctx, vol); err != nil {
		return "", err
	}
	return fmt.Sprintf("Volume set to %d.", vol), nil
}

func (b *Bot) cmdLoop(guildID string, args []string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		mode := p.Queue().ToggleLoop()
		return fmt.Sprintf("Loop mode: %s.", mode), nil
	}
	mode, err := rias.ParseLoopMode(args[0])
	if err != nil {
		return "Usage: " + b.prefix + "loop [none|track|queue]", nil
	}
	p.SetLoop(mode)
	return fmt.Sprintf("Loop mode: %s.", mode), nil
}

func (b *Bot) cmdShuffle(guildID string, smart bool) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if smart {
		p.SmartShuffleQueue()
		return "Queue shuffled (authors spread out).", nil
	}
	p.ShuffleQueue()
	return "Queue shuffled.", nil
}

func (b *Bot) cmdQueue(guildID string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	summary := p.Queue().Summary()
	if summary.Size == 0 && p.Track() == nil {
		return "The queue is empty.", nil
	}
	var sb strings.Builder
	if t := p.Track(); t != nil {
		fmt.Fprintf(&sb, "Now playing: **%s** by %s\n", t.Info.Title, t.Info.Author)
	}
	sb.WriteString(summary.String())
	for i, t := range p.Queue().Slice(0, 10) {
		fmt.Fprintf(&sb, "\n%2d. %s by %s", i+1, t.Info.Title, t.Info.Author)
	}
	if summary.Size > 10 {
		fmt.Fprintf(&sb, "\n… and %d more", summary.Size-10)
	}
	return sb.String(), nil
}

func (b *Bot) cmdNowPlaying(guildID string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	t := p.Track()
	if t == nil {
		return "Nothing is playing.", nil
	}
	pos := time.Duration(p.Position()) * time.Millisecond
	return fmt.Sprintf("**%s** by %s (%s / %s)", t.Info.Title, t.Info.Author,
		pos.Round(time.Second), t.Info.Duration().Round(time.Second)), nil
}

func (b *Bot) cmdFilter(ctx context.Context, guildID string, args []string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "Usage: " + b.prefix + "filter <bassboost|nightcore|vaporwave|8d|karaoke|clear>", nil
	}

	fb := lavalink.NewFilterBuilder()
	switch strings.ToLower(args[0]) {
	case "bassboost":
		level := lavalink.BassBoostMedium
		if len(args) > 1 {
			switch strings.ToLower(args[1]) {
			case "low":
				level = lavalink.BassBoostLow
			case "high":
				level = lavalink.BassBoostHigh
			}
		}
		fb.BassBoost(level)
	case "nightcore":
		fb.Nightcore()
	case "vaporwave":
		fb.Vaporwave()
	case "8d", "eightd":
		fb.EightD()
	case "karaoke":
		fb.Karaoke()
	case "clear", "off":
		if err := p.ClearFilters(ctx); err != nil {
			return "", err
		}
		return "Filters cleared.", nil
	default:
		return "Unknown filter " + args[0] + ".", nil
	}

	if err := p.SetFilters(ctx, fb.Build()); err != nil {
		return "", err
	}
	return "Filter applied: " + strings.ToLower(args[0]) + ".", nil
}

func (b *Bot) cmdLeave(ctx context.Context, guildID string) (string, error) {
	p, err := b.player(guildID)
	if err != nil {
		return "", err
	}
	if err := p.DisconnectVoice(); err != nil {
		return "", err
	}
	b.cluster.Destroy(ctx, guildID)
	return "Left voice.", nil
}

// userMessage maps library errors onto short chat-friendly text.
func userMessage(err error) string {
	switch {
	case errors.Is(err, rias.ErrPlayerNotFound):
		return "nothing is playing in this server."
	case errors.Is(err, rias.ErrNoAvailableNodes):
		return "no audio node is available right now."
	case errors.Is(err, rias.ErrNoTrackPlaying):
		return "nothing is playing."
	case errors.Is(err, rias.ErrNotSeekable):
		return "this track cannot be seeked."
	case errors.Is(err, rias.ErrInvalidVolume):
		return "volume must be between 0 and 1000."
	case errors.Is(err, rias.ErrTrackLoadFailed):
		return "that track failed to load."
	case errors.Is(err, rias.ErrTimeout):
		return "the audio node took too long to respond."
	}
	return err.Error()
}
