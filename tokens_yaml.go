package flatidx

import (
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

type yamlToken struct {
	tok  Token
	text string
}

// YAMLReader reads tokens from the first document of a YAML stream. The
// document is parsed up front; Next replays its tokens.
type YAMLReader struct {
	toks []yamlToken
	pos  int
}

func NewYAMLReader(data []byte) (*YAMLReader, error) {
	file, err := parser.ParseBytes(data, 0)
	if err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	yr := &YAMLReader{pos: -1}
	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return yr, nil
	}
	if err := yr.appendNode(file.Docs[0].Body); err != nil {
		return nil, err
	}
	return yr, nil
}

func (yr *YAMLReader) Token() Token {
	if yr.pos < 0 || yr.pos >= len(yr.toks) {
		return TokenNone
	}
	return yr.toks[yr.pos].tok
}

func (yr *YAMLReader) Name() string {
	if yr.Token() != FieldName {
		return ""
	}
	return yr.toks[yr.pos].text
}

func (yr *YAMLReader) Text() string {
	if yr.Token() != ValueScalar {
		return ""
	}
	return yr.toks[yr.pos].text
}

func (yr *YAMLReader) Next() (Token, error) {
	if yr.pos < len(yr.toks) {
		yr.pos++
	}
	if yr.pos >= len(yr.toks) {
		return TokenNone, io.EOF
	}
	return yr.toks[yr.pos].tok, nil
}

func (yr *YAMLReader) emit(tok Token, text string) {
	yr.toks = append(yr.toks, yamlToken{tok, text})
}

func (yr *YAMLReader) appendNode(node ast.Node) error {
	switch n := node.(type) {
	case *ast.MappingNode:
		yr.emit(StartObject, "")
		for _, kv := range n.Values {
			if err := yr.appendPair(kv); err != nil {
				return err
			}
		}
		yr.emit(EndObject, "")
	case *ast.MappingValueNode:
		yr.emit(StartObject, "")
		if err := yr.appendPair(n); err != nil {
			return err
		}
		yr.emit(EndObject, "")
	case *ast.SequenceNode:
		yr.emit(StartArray, "")
		for _, item := range n.Values {
			if err := yr.appendNode(item); err != nil {
				return err
			}
		}
		yr.emit(EndArray, "")
	case *ast.AnchorNode:
		return yr.appendNode(n.Value)
	case *ast.TagNode:
		return yr.appendNode(n.Value)
	case *ast.AliasNode:
		return fmt.Errorf("yaml: aliases are not supported (%s)", n.String())
	case *ast.NullNode:
		yr.emit(ValueNull, "")
	default:
		text, err := yamlScalarText(node)
		if err != nil {
			return err
		}
		yr.emit(ValueScalar, text)
	}
	return nil
}

func (yr *YAMLReader) appendPair(kv *ast.MappingValueNode) error {
	name, err := yamlScalarText(kv.Key)
	if err != nil {
		return fmt.Errorf("yaml: mapping key: %w", err)
	}
	yr.emit(FieldName, name)
	return yr.appendNode(kv.Value)
}

func yamlScalarText(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, nil
	case *ast.LiteralNode:
		return n.Value.Value, nil
	case *ast.BoolNode:
		return strconv.FormatBool(n.Value), nil
	case *ast.IntegerNode:
		return fmt.Sprint(n.Value), nil
	case *ast.FloatNode:
		return strconv.FormatFloat(n.Value, 'g', -1, 64), nil
	case *ast.NullNode:
		return "", nil
	case *ast.TagNode:
		return yamlScalarText(n.Value)
	case *ast.AnchorNode:
		return yamlScalarText(n.Value)
	case ast.ScalarNode:
		return n.GetToken().Value, nil
	default:
		return "", fmt.Errorf("yaml: expected a scalar, got %v at %s", node.Type(), node.GetToken().Position)
	}
}
