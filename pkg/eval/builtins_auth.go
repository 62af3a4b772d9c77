package eval

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"poly/pkg/sovereignty"
)

// --- Password hashing ---

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// --- Tokens ---

// SignToken signs claims with HS256. The token expires after ttl and
// carries a random jti.
func SignToken(claims map[string]interface{}, secret string, ttl time.Duration) (string, error) {
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	now := time.Now()
	mc["iat"] = now.Unix()
	mc["exp"] = now.Add(ttl).Unix()
	if _, ok := mc["jti"]; !ok {
		mc["jti"] = uuid.NewString()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	return token.SignedString([]byte(secret))
}

func VerifyToken(tokenString, secret string) (map[string]interface{}, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func init() {
	register("hash_password", func(in *Interpreter, args ...Object) Object {
		pw, ok := stringArg(args, 0)
		if !ok {
			return newError("hash_password() requires a string")
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return newError("hash_password() failed: %s", err)
		}
		return NewString(hash)
	})
	register("verify_password", func(in *Interpreter, args ...Object) Object {
		hash, ok1 := stringArg(args, 0)
		pw, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return newError("verify_password() requires a hash and a password")
		}
		return nativeBoolToBooleanObject(VerifyPassword(hash, pw))
	}, "hash", "password")
	register("jwt_sign", builtinJWTSign, "payload", "secret", "expires_in")
	register("jwt_verify", func(in *Interpreter, args ...Object) Object {
		token, ok1 := stringArg(args, 0)
		secret, ok2 := stringArg(args, 1)
		if !ok1 || !ok2 {
			return newError("jwt_verify() requires a token and a secret")
		}
		claims, err := VerifyToken(token, secret)
		if err != nil {
			return NULL
		}
		return FromNative(claims)
	}, "token", "secret")
	register("uuid", func(in *Interpreter, args ...Object) Object {
		return NewString(uuid.NewString())
	})
	register("env", func(in *Interpreter, args ...Object) Object {
		name, ok := stringArg(args, 0)
		if !ok {
			return newError("env() requires a variable name")
		}
		if v, found := os.LookupEnv(name); found {
			return NewString(v)
		}
		if def, ok := arg(args, 1); ok {
			return def
		}
		return NULL
	}, "name", "default")
	register("load_env", func(in *Interpreter, args ...Object) Object {
		path := ".env"
		if p, ok := stringArg(args, 0); ok {
			path = p
		}
		if err := in.checkPath(sovereignty.FsRead, path); err != nil {
			return err
		}
		if err := godotenv.Load(in.resolvePath(path)); err != nil {
			return newError("load_env() failed: %s", err)
		}
		return TRUE
	}, "path")
}

func builtinJWTSign(in *Interpreter, args ...Object) Object {
	payload, ok1 := dictArg(args, 0)
	secret, ok2 := stringArg(args, 1)
	if !ok1 || !ok2 {
		return newError("jwt_sign() requires a payload dict and a secret")
	}
	ttl := time.Hour
	if e, ok := stringArg(args, 2); ok {
		d, err := time.ParseDuration(e)
		if err != nil {
			return newError("jwt_sign() invalid duration: %s", err)
		}
		ttl = d
	}
	claims, _ := ToNative(payload).(map[string]interface{})
	token, err := SignToken(claims, secret, ttl)
	if err != nil {
		return newError("jwt_sign() failed: %s", err)
	}
	return NewString(token)
}
