package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	gossh "golang.org/x/crypto/ssh"

	"github.com/zx06/xssh/internal/errors"
)

// genKeyPEM 生成一个 ed25519 私钥的 PEM 编码。
func genKeyPEM(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := gossh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatal(err)
	}
	return pem.EncodeToMemory(block)
}

func writeKey(t *testing.T, home, name string) {
	t.Helper()
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), genKeyPEM(t), 0o600); err != nil {
		t.Fatal(err)
	}
}

func credNames(chain []Credential) []string {
	names := make([]string, 0, len(chain))
	for _, c := range chain {
		names = append(names, c.Name)
	}
	return names
}

func TestBuildChainKeyMaterialIsSoleFatalCandidate(t *testing.T) {
	home := t.TempDir()
	writeKey(t, home, "id_ed25519") // 即使存在文件私钥也不参与

	chain, xe := BuildChain(Options{KeyMaterial: string(genKeyPEM(t)), HomeDir: home})
	if xe != nil {
		t.Fatalf("BuildChain failed: %v", xe)
	}
	if len(chain) != 1 {
		t.Fatalf("got %d candidates, want 1: %v", len(chain), credNames(chain))
	}
	if chain[0].Name != "secret-key" || !chain[0].Fatal {
		t.Errorf("candidate = %+v, want fatal secret-key", chain[0])
	}
}

func TestBuildChainKeyMaterialParseFailureIsFatal(t *testing.T) {
	_, xe := BuildChain(Options{KeyMaterial: "not a pem key", HomeDir: t.TempDir()})
	if xe == nil {
		t.Fatal("unparseable key material should fail")
	}
	if xe.Code != errors.CodeCfgInvalid {
		t.Errorf("code = %s, want %s", xe.Code, errors.CodeCfgInvalid)
	}
}

func TestBuildChainDiscoveryOrder(t *testing.T) {
	home := t.TempDir()
	// 乱序写入；链内顺序必须是固定优先级。
	writeKey(t, home, "id_rsa")
	writeKey(t, home, "id_ed25519")

	chain, xe := BuildChain(Options{HomeDir: home, NoAgent: true})
	if xe != nil {
		t.Fatalf("BuildChain failed: %v", xe)
	}
	got := credNames(chain)
	want := []string{"id_ed25519", "id_rsa"}
	if len(got) != len(want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain = %v, want %v", got, want)
		}
	}
}

func TestBuildChainExplicitIdentityIsSoleCandidate(t *testing.T) {
	home := t.TempDir()
	writeKey(t, home, "id_ed25519")
	writeKey(t, home, "deploy_key")

	chain, xe := BuildChain(Options{
		HomeDir:      home,
		NoAgent:      true,
		IdentityFile: filepath.Join(home, ".ssh", "deploy_key"),
	})
	if xe != nil {
		t.Fatalf("BuildChain failed: %v", xe)
	}
	if len(chain) != 1 || chain[0].Name != "deploy_key" {
		t.Errorf("chain = %v, want [deploy_key]", credNames(chain))
	}
}

func TestBuildChainIdentitiesOnlyDisablesDiscovery(t *testing.T) {
	home := t.TempDir()
	writeKey(t, home, "id_ed25519")

	chain, xe := BuildChain(Options{HomeDir: home, NoAgent: true, IdentitiesOnly: true})
	if xe != nil {
		t.Fatalf("BuildChain failed: %v", xe)
	}
	if len(chain) != 0 {
		t.Errorf("chain = %v, want empty", credNames(chain))
	}
}

func TestBuildChainSkipsUnreadableAndUnparseableKeys(t *testing.T) {
	home := t.TempDir()
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	// id_rsa 内容损坏，id_ecdsa 缺失；链只剩 id_ed25519。
	if err := os.WriteFile(filepath.Join(dir, "id_rsa"), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	writeKey(t, home, "id_ed25519")

	chain, xe := BuildChain(Options{HomeDir: home, NoAgent: true})
	if xe != nil {
		t.Fatalf("BuildChain failed: %v", xe)
	}
	if len(chain) != 1 || chain[0].Name != "id_ed25519" {
		t.Errorf("chain = %v, want [id_ed25519]", credNames(chain))
	}
}

func TestBuildChainUnreachableAgentIsSkipped(t *testing.T) {
	home := t.TempDir()
	writeKey(t, home, "id_ed25519")

	chain, xe := BuildChain(Options{
		HomeDir:   home,
		AgentSock: filepath.Join(home, "no-such-agent.sock"),
	})
	if xe != nil {
		t.Fatalf("BuildChain failed: %v", xe)
	}
	if len(chain) != 1 || chain[0].Name != "id_ed25519" {
		t.Errorf("chain = %v, want [id_ed25519]", credNames(chain))
	}
}
