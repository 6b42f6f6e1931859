// keygen 生成令牌签名密钥对；-password 同时输出 users.password_hash
package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sudooom.trapdoors/internal/auth"
)

func main() {
	password := flag.String("password", "", "也为该密码生成 bcrypt 哈希")
	flag.Parse()

	if err := run(os.Stdout, *password); err != nil {
		slog.Error("Failed to generate keys", "error", err)
		os.Exit(1)
	}
}

func run(w io.Writer, password string) error {
	seed, err := auth.GenerateSeed()
	if err != nil {
		return err
	}
	public := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)

	fmt.Fprintln(w, "auth:")
	fmt.Fprintf(w, "  signing_key: %q # 只配置在权威会话上\n", auth.EncodeKey(seed))
	fmt.Fprintf(w, "  public_key: %q\n", auth.EncodeKey(public))

	if password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# password_hash: %s\n", hash)
	return nil
}
