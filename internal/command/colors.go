package command

// EmbedColor is the accent color for all bot embeds.
const EmbedColor = 0x9146ff
