package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-portfolio/corujao-chat/internal/store"
)

// RankingReader serves the /ranking command.
type RankingReader interface {
	TopRanking(ctx context.Context, limit int) ([]store.RankingEntry, error)
}

// Dispatcher parses "/command arg..." text and routes it to a handler.
// The first whitespace-delimited token selects the command,
// case-insensitively; remaining tokens are positional arguments.
// Administrative commands check the role attached to the connection's
// authenticated identity, never anything client-supplied.
type Dispatcher struct {
	registry   *Registry
	moderation *Moderation
	ranking    RankingReader
}

func NewDispatcher(registry *Registry, moderation *Moderation, ranking RankingReader) *Dispatcher {
	return &Dispatcher{registry: registry, moderation: moderation, ranking: ranking}
}

type commandFunc func(d *Dispatcher, c *Client, args []string)

type command struct {
	fn        commandFunc
	adminOnly bool
}

// Portuguese names first, English aliases alongside, matching what the
// frontend historically sent.
var commands = map[string]command{
	"ajuda":    {fn: cmdHelp},
	"help":     {fn: cmdHelp},
	"sala":     {fn: cmdRoom},
	"room":     {fn: cmdRoom},
	"limpar":   {fn: cmdClear},
	"clear":    {fn: cmdClear},
	"quem":     {fn: cmdWho},
	"who":      {fn: cmdWho},
	"salas":    {fn: cmdRooms},
	"rooms":    {fn: cmdRooms},
	"ranking":  {fn: cmdRanking},
	"sair":     {fn: cmdLogout},
	"logout":   {fn: cmdLogout},
	"anunciar": {fn: cmdAnnounce, adminOnly: true},
	"announce": {fn: cmdAnnounce, adminOnly: true},
	"ban":      {fn: cmdBan, adminOnly: true},
	"mute":     {fn: cmdMute, adminOnly: true},
	"unmute":   {fn: cmdUnmute, adminOnly: true},
}

// Dispatch handles one command line. Responses go to the sender only;
// nothing here is ever broadcast unless the handler does so explicitly.
func (d *Dispatcher) Dispatch(c *Client, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	cmd, ok := commands[name]
	if !ok {
		c.Deliver(NewSystemMessage("", "comando não reconhecido. Digite /ajuda para ver as opções."))
		return
	}
	if cmd.adminOnly && !c.Identity().IsAdmin() {
		c.Deliver(NewSystemMessage("", "comando restrito a administradores."))
		return
	}
	cmd.fn(d, c, fields[1:])
}

const helpText = `Comandos disponíveis:
/ajuda — esta mensagem
/sala <nome> — entrar ou criar uma sala
/salas — listar salas ativas
/quem — quem está na sua sala
/ranking — top corujões
/limpar — limpar a tela
/sair — desconectar
Administradores: /anunciar <texto>, /ban <nick>, /mute <nick>, /unmute <nick>`

func cmdHelp(d *Dispatcher, c *Client, args []string) {
	c.Deliver(NewSystemMessage("", helpText))
}

func cmdRoom(d *Dispatcher, c *Client, args []string) {
	if len(args) == 0 {
		c.Deliver(NewSystemMessage("", "uso: /sala <nome>. Exemplo: /sala louvor"))
		return
	}
	c.enterRoom(strings.ToLower(args[0]), false)
}

func cmdClear(d *Dispatcher, c *Client, args []string) {
	c.Deliver(NewClearScreen())
}

func cmdWho(d *Dispatcher, c *Client, args []string) {
	roomName := d.registry.RoomOf(c.ID())
	c.Deliver(NewUserList(roomName, d.registry.Usernames(roomName)))
}

func cmdRooms(d *Dispatcher, c *Client, args []string) {
	c.Deliver(NewRoomList(d.registry.Rooms()))
}

func cmdRanking(d *Dispatcher, c *Client, args []string) {
	if d.ranking == nil {
		c.Deliver(NewSystemMessage("", "ranking indisponível."))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	top, err := d.ranking.TopRanking(ctx, 20)
	if err != nil {
		c.Deliver(NewSystemMessage("", "ranking indisponível no momento, tente novamente."))
		return
	}
	if len(top) == 0 {
		c.Deliver(NewSystemMessage("", "ranking ainda vazio."))
		return
	}

	var b strings.Builder
	b.WriteString("TOP CORUJÕES:")
	for i, e := range top {
		fmt.Fprintf(&b, "\n%d. @%s - %d", i+1, e.Nick, e.Points)
	}
	c.Deliver(NewSystemMessage("", b.String()))
}

func cmdLogout(d *Dispatcher, c *Client, args []string) {
	c.Deliver(NewSystemMessage("", "até logo!"))
	c.shutdown()
}

func cmdAnnounce(d *Dispatcher, c *Client, args []string) {
	if len(args) == 0 {
		c.Deliver(NewSystemMessage("", "uso: /anunciar <texto>"))
		return
	}
	text := "[anúncio] " + strings.Join(args, " ")
	for _, info := range d.registry.Rooms() {
		d.registry.Broadcast(info.Name, NewSystemMessage(info.Name, text))
	}
}

func cmdBan(d *Dispatcher, c *Client, args []string) {
	if len(args) == 0 {
		c.Deliver(NewSystemMessage("", "uso: /ban <nick>"))
		return
	}
	nick := args[0]
	d.moderation.Ban(nick)
	for _, m := range d.registry.FindByUsername(nick) {
		m.Kick("você foi banido por um administrador")
	}
	c.Deliver(NewSystemMessage("", fmt.Sprintf("%s foi banido.", nick)))
}

func cmdMute(d *Dispatcher, c *Client, args []string) {
	if len(args) == 0 {
		c.Deliver(NewSystemMessage("", "uso: /mute <nick>"))
		return
	}
	nick := args[0]
	d.moderation.Mute(nick)
	for _, m := range d.registry.FindByUsername(nick) {
		m.Deliver(NewSystemMessage("", "você foi silenciado por um administrador."))
	}
	c.Deliver(NewSystemMessage("", fmt.Sprintf("%s foi silenciado.", nick)))
}

func cmdUnmute(d *Dispatcher, c *Client, args []string) {
	if len(args) == 0 {
		c.Deliver(NewSystemMessage("", "uso: /unmute <nick>"))
		return
	}
	nick := args[0]
	d.moderation.Unmute(nick)
	for _, m := range d.registry.FindByUsername(nick) {
		m.Deliver(NewSystemMessage("", "você pode falar novamente."))
	}
	c.Deliver(NewSystemMessage("", fmt.Sprintf("%s pode falar novamente.", nick)))
}
