// Package discord adapts a discordgo session to a rias cluster: it relays
// the gateway's voice packets into the cluster and translates the cluster's
// voice-join intents back into gateway opcodes.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/rias/pkg/rias"
)

// Sender delivers opcode 4 voice-state updates. *discordgo.Session
// satisfies it.
type Sender interface {
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

var _ Sender = (*discordgo.Session)(nil)

// SendFunc builds the cluster's outbound gateway callback on top of a
// discordgo session.
func SendFunc(s Sender) rias.SendFunc {
	return func(guildID string, payload any) error {
		vj, ok := payload.(rias.VoiceJoin)
		if !ok {
			return fmt.Errorf("discord: unsupported gateway payload %T", payload)
		}
		channelID := ""
		if vj.D.ChannelID != nil {
			channelID = *vj.D.ChannelID
		}
		return s.ChannelVoiceJoinManual(guildID, channelID, vj.D.SelfMute, vj.D.SelfDeaf)
	}
}

// Attach subscribes the cluster to the session's voice packets. The returned
// function removes both handlers again.
func Attach(s *discordgo.Session, r *rias.Rias) (detach func()) {
	removeServer := s.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceServerUpdate) {
		// discordgo reports a mid-migration endpoint as the empty string;
		// the cluster expects nil for "not yet known".
		var endpoint *string
		if e.Endpoint != "" {
			endpoint = &e.Endpoint
		}
		r.HandleVoiceServerUpdate(e.GuildID, e.Token, endpoint)
	})
	removeState := s.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
		var channelID *string
		if e.ChannelID != "" {
			channelID = &e.ChannelID
		}
		r.HandleVoiceStateUpdate(e.GuildID, e.UserID, e.SessionID, channelID)
	})
	return func() {
		removeServer()
		removeState()
	}
}
